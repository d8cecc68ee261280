package domain

type CopyStatus string

const (
	CopyStatusAvailable CopyStatus = "available"
	CopyStatusLoaned    CopyStatus = "loaned"
	CopyStatusReserved  CopyStatus = "reserved"
	CopyStatusDamaged   CopyStatus = "damaged"
	CopyStatusLost      CopyStatus = "lost"
)

// Copy is a physical instance of a Book, individually loanable.
type Copy struct {
	ID      string
	BookID  string
	Barcode string
	Status  CopyStatus
}

// Loanable reports whether the copy can start a new loan for an unreserved
// walk-in checkout.
func (c Copy) Loanable() bool {
	return c.Status == CopyStatusAvailable
}
