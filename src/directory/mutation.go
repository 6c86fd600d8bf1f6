package directory

import (
	"fmt"

	m "social_graph_services/src/models"
)

type Field string

const (
	FieldFriends          Field = "friends"
	FieldRequestsSent     Field = "friendRequestsSent"
	FieldRequestsReceived Field = "friendRequestsReceived"
	FieldFollowing        Field = "following"
	FieldFCMTokens        Field = "fcmTokens"
)

// RelationshipFields are the four arrays that hold other users' ids. Only the first three are
// mirrored on the other user's document; following is one-sided.
var RelationshipFields = []Field{FieldFriends, FieldRequestsSent, FieldRequestsReceived, FieldFollowing}

func (field Field) Valid() bool {
	switch field {
	case FieldFriends, FieldRequestsSent, FieldRequestsReceived, FieldFollowing, FieldFCMTokens:
		return true
	}
	return false
}

type Op int

const (
	ArrayUnion Op = iota + 1
	ArrayRemove
)

func (op Op) String() string {
	switch op {
	case ArrayUnion:
		return "arrayUnion"
	case ArrayRemove:
		return "arrayRemove"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

type FieldOp struct {
	Field Field
	Op    Op
	Value string
}

// Mutation is an ordered list of set operations on one document.
type Mutation []FieldOp

func Union(field Field, value string) FieldOp {
	return FieldOp{Field: field, Op: ArrayUnion, Value: value}
}

func Remove(field Field, value string) FieldOp {
	return FieldOp{Field: field, Op: ArrayRemove, Value: value}
}

func (mutation Mutation) Validate() error {
	for _, fieldOp := range mutation {
		if !fieldOp.Field.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownField, fieldOp.Field)
		}
		if fieldOp.Op != ArrayUnion && fieldOp.Op != ArrayRemove {
			return fmt.Errorf("unsupported op %v on %q", fieldOp.Op, fieldOp.Field)
		}
	}
	return nil
}

// Apply is the reference semantics: union appends when absent, remove drops every occurrence.
func (mutation Mutation) Apply(user *m.User) error {
	if err := mutation.Validate(); err != nil {
		return err
	}
	for _, fieldOp := range mutation {
		target := FieldValues(user, fieldOp.Field)
		switch fieldOp.Op {
		case ArrayUnion:
			if !Contains(*target, fieldOp.Value) {
				*target = append(*target, fieldOp.Value)
			}
		case ArrayRemove:
			*target = without(*target, fieldOp.Value)
		}
	}
	return nil
}

// FieldValues returns a pointer to the slice backing field on user.
func FieldValues(user *m.User, field Field) *[]string {
	switch field {
	case FieldFriends:
		return &user.Friends
	case FieldRequestsSent:
		return &user.FriendRequestsSent
	case FieldRequestsReceived:
		return &user.FriendRequestsReceived
	case FieldFollowing:
		return &user.Following
	case FieldFCMTokens:
		return &user.FCMTokens
	}
	panic(fmt.Sprintf("directory: unknown field %q", field))
}

func Contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func without(values []string, value string) []string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v != value {
			kept = append(kept, v)
		}
	}
	return kept
}

func (op Op) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}
