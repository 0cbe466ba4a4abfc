package users

// Repo stores profiles for the reference auth API. Emails are unique.
type Repo interface {
	Upsert(profile *Profile) error
	Delete(uid string) error
	GetByEmail(email string) (*Profile, error)
	GetByUID(uid string) (*Profile, error)
	List(offset, limit int) ([]*Profile, error)
}
