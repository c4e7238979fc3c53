package store

import "time"

type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Session struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Todo struct {
	ID        int64
	Title     string
	Completed bool
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TodoPatch is a partial update. Nil fields are left unchanged.
type TodoPatch struct {
	Title     *string
	Completed *bool
}

// Apply returns item with the patch and the new update time applied.
func (p TodoPatch) Apply(item Todo, updatedAt time.Time) Todo {
	for _, field := range p.fields() {
		switch field.column {
		case "title":
			item.Title = *p.Title
		case "completed":
			item.Completed = *p.Completed
		}
	}
	item.UpdatedAt = updatedAt
	return item
}

type patchField struct {
	column string
	value  any
}

// fields lists the columns the patch touches, in a stable order. Both the SQL
// SET clause and Apply are driven from it.
func (p TodoPatch) fields() []patchField {
	fields := make([]patchField, 0, 2)
	if p.Title != nil {
		fields = append(fields, patchField{column: "title", value: *p.Title})
	}
	if p.Completed != nil {
		fields = append(fields, patchField{column: "completed", value: *p.Completed})
	}
	return fields
}
