package commentable

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
)

// User is an authenticated commenter. A user's partition is its own id.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	PictureURL string    `json:"picture_url"`
	AuthToken  string    `json:"auth_token"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key returns the table key of u.
func (u User) Key() Key {
	return Key{Partition: u.ID, ID: u.ID}
}

// Item returns the stored attributes of u.
func (u User) Item() Item {
	return Item{
		AttributeNamePartition: StringValue(u.ID),
		AttributeNameID:        StringValue(u.ID),
		AttributeNameEmail:     StringValue(u.Email),
		AttributeNameName:      StringValue(u.Name),
		AttributeNamePicture:   StringValue(u.PictureURL),
		AttributeNameAuthToken: StringValue(u.AuthToken),
		AttributeNameCreatedAt: TimeValue(u.CreatedAt),
	}
}

// UnmarshalUser decodes a stored user.
func UnmarshalUser(item Item) (User, error) {
	d := decoder{item: item}
	u := User{
		ID:         d.string(AttributeNameID),
		Email:      d.string(AttributeNameEmail),
		Name:       d.string(AttributeNameName),
		PictureURL: d.string(AttributeNamePicture),
		AuthToken:  d.string(AttributeNameAuthToken),
		CreatedAt:  d.time(AttributeNameCreatedAt),
	}
	return u, d.err
}

// Identity is a verified external identity used to register a user.
type Identity struct {
	Email      string
	Name       string
	PictureURL string
}

// Users provides access to user records.
type Users struct {
	*Model[User]
}

// NewUsers creates the user model on t.
func NewUsers(t *Table) *Users {
	return &Users{Model: NewModel(t, "user", UserPrefix, UnmarshalUser)}
}

// FindByID looks up a user by id.
func (u *Users) FindByID(ctx context.Context, id string) (User, bool, error) {
	return u.Find(ctx, Key{Partition: id, ID: id})
}

// FindByEmail looks up a user by the email the id was derived from.
func (u *Users) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	return u.FindByID(ctx, UserID(email))
}

// Register creates the user for identity with a fresh auth token. An
// existing user with the same email is ErrConflict.
func (u *Users) Register(ctx context.Context, identity Identity) (User, error) {
	id := UserID(identity.Email)
	user := User{
		ID:         id,
		Email:      identity.Email,
		Name:       identity.Name,
		PictureURL: identity.PictureURL,
		AuthToken:  NewAuthToken(id),
		CreatedAt:  u.Table().Tick(),
	}
	return u.CreateUnique(ctx, user.Item())
}

// FindOrRegister returns the user for identity, registering it on first sight.
func (u *Users) FindOrRegister(ctx context.Context, identity Identity) (User, error) {
	user, found, err := u.FindByEmail(ctx, identity.Email)
	if err != nil {
		return User{}, err
	}
	if found {
		return user, nil
	}

	user, err = u.Register(ctx, identity)
	if errors.Is(err, ErrConflict) {
		// Lost a race with a concurrent first sign-in
		return u.Get(ctx, Key{Partition: UserID(identity.Email), ID: UserID(identity.Email)})
	}
	return user, err
}

// Authenticate resolves the user owning token. An unknown user or a token
// that does not match the stored one is ErrNotFound.
func (u *Users) Authenticate(ctx context.Context, token string) (User, error) {
	id, err := ParseAuthToken(token)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	user, found, err := u.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !found || subtle.ConstantTimeCompare([]byte(user.AuthToken), []byte(token)) != 1 {
		return User{}, fmt.Errorf("auth token: %w", ErrNotFound)
	}
	return user, nil
}

// ByIDs batch fetches users and returns them keyed by id. Unknown ids are
// absent from the result.
func (u *Users) ByIDs(ctx context.Context, ids []string) (map[string]User, error) {
	keys := make([]Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, Key{Partition: id, ID: id})
	}

	users, err := u.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID, nil
}
