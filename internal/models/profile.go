package models

import "time"

// Document field names shared by every profile store.
const (
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldEmail           = "emailAddress"
	FieldAddress         = "address"
	FieldPhone           = "phone"
	FieldBornOrAge       = "bornOrAge"
	FieldProfilePhotoURI = "profilePhotoUri"
	FieldCreatedAt       = "createdAt"
)

// ProfileDocument is the application-owned profile record keyed by Identity.ID.
type ProfileDocument struct {
	ID              string    `json:"id" firestore:"-" bson:"_id"`
	FirstName       string    `json:"firstName" firestore:"firstName" bson:"first_name"`
	LastName        string    `json:"lastName" firestore:"lastName" bson:"last_name"`
	Email           string    `json:"emailAddress" firestore:"emailAddress" bson:"email_address"`
	Address         string    `json:"address" firestore:"address" bson:"address"`
	Phone           string    `json:"phone,omitempty" firestore:"phone,omitempty" bson:"phone,omitempty"`
	BornOrAge       string    `json:"bornOrAge" firestore:"bornOrAge" bson:"born_or_age"`
	ProfilePhotoURI string    `json:"profilePhotoUri,omitempty" firestore:"profilePhotoUri,omitempty" bson:"profile_photo_uri,omitempty"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt" bson:"created_at"`
}

// ProfilePatch is a partial update of a ProfileDocument. Nil fields are left untouched;
// CreatedAt and Email are not patchable.
type ProfilePatch struct {
	FirstName       *string
	LastName        *string
	Address         *string
	Phone           *string
	BornOrAge       *string
	ProfilePhotoURI *string
}

// Fields returns the set fields keyed by document field name.
func (p ProfilePatch) Fields() map[string]string {
	out := make(map[string]string)
	set := func(name string, v *string) {
		if v != nil {
			out[name] = *v
		}
	}
	set(FieldFirstName, p.FirstName)
	set(FieldLastName, p.LastName)
	set(FieldAddress, p.Address)
	set(FieldPhone, p.Phone)
	set(FieldBornOrAge, p.BornOrAge)
	set(FieldProfilePhotoURI, p.ProfilePhotoURI)
	return out
}

func (p ProfilePatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Apply writes the set fields onto doc.
func (p ProfilePatch) Apply(doc *ProfileDocument) {
	if p.FirstName != nil {
		doc.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		doc.LastName = *p.LastName
	}
	if p.Address != nil {
		doc.Address = *p.Address
	}
	if p.Phone != nil {
		doc.Phone = *p.Phone
	}
	if p.BornOrAge != nil {
		doc.BornOrAge = *p.BornOrAge
	}
	if p.ProfilePhotoURI != nil {
		doc.ProfilePhotoURI = *p.ProfilePhotoURI
	}
}

// ProfileEdit is the explicit profile-edit request. Nil fields are left untouched.
type ProfileEdit struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	BornOrAge *string `json:"born_or_age"`
}

func (e ProfileEdit) Patch() ProfilePatch {
	return ProfilePatch{
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Address:   e.Address,
		Phone:     e.Phone,
		BornOrAge: e.BornOrAge,
	}
}

type ViewSource string

const (
	ViewFromDocument ViewSource = "document"
	ViewFromIdentity ViewSource = "identity"
)

// ProfileView is the read-only projection handed to the UI. It is rebuilt on every
// resolution and never persisted.
type ProfileView struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email_address"`
	Address         string     `json:"address,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	BornOrAge       string     `json:"born_or_age,omitempty"`
	ProfilePhotoURI string     `json:"profile_photo_uri,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	Source          ViewSource `json:"source"`
}

// NewDocumentView builds a view with the document's fields exactly as stored.
func NewDocumentView(doc *ProfileDocument) *ProfileView {
	created := doc.CreatedAt
	return &ProfileView{
		ID:              doc.ID,
		FirstName:       doc.FirstName,
		LastName:        doc.LastName,
		Email:           doc.Email,
		Address:         doc.Address,
		Phone:           doc.Phone,
		BornOrAge:       doc.BornOrAge,
		ProfilePhotoURI: doc.ProfilePhotoURI,
		CreatedAt:       &created,
		Source:          ViewFromDocument,
	}
}

// NewIdentityView synthesizes the fallback view used when no document exists yet.
func NewIdentityView(id *Identity) *ProfileView {
	return &ProfileView{
		ID:              id.ID,
		Email:           id.Email,
		ProfilePhotoURI: id.PhotoURI,
		Source:          ViewFromIdentity,
	}
}
