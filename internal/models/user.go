package models

// Identity is the account record owned by the identity provider. ID is stable for
// the life of the account and keys every other store.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email_address"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURI    string `json:"photo_uri,omitempty"`
}

// IdentityPatch carries the provider-side fields a client may change. Nil fields are left untouched.
type IdentityPatch struct {
	DisplayName *string
	PhotoURI    *string
}

// RegistrationForm is the sign-up input. Every field is required.
type RegistrationForm struct {
	Email     string `json:"email_address" validate:"required"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Address   string `json:"address" validate:"required"`
	BornOrAge string `json:"born_or_age" validate:"required"`
	Phone     string `json:"phone,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email_address" validate:"required"`
	Password string `json:"password" validate:"required"`
}
