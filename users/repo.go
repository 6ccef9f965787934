package users

// Repo stores the accounts served by the stand-in API.
type Repo interface {
	Upsert(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(ID string) (*Account, error)
	SetPasswordHash(email, hash string) error
}
