package store

import (
	"time"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is one collaboratively edited text document. Version starts
// at 0 and increases by exactly 1 per committed operation; Content is
// the fold of every operation applied in applied_version order.
type Document struct {
	ID        string    `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Content   string    `bson:"content" json:"content"`
	Version   int64     `bson:"version" json:"version"`
	OwnerID   string    `bson:"owner_id" json:"owner_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Copy returns a deep copy of the document.
func (d *Document) Copy() *Document {
	if d == nil {
		return nil
	}
	out := &Document{}
	if err := copier.CopyWithOption(out, d, copier.Option{DeepCopy: true}); err != nil {
		clone := *d
		return &clone
	}
	return out
}

// Operation is one committed edit. AppliedVersion is the document
// version after the edit; for a document the applied versions form the
// gap-free sequence 1,2,3,... Operations are immutable once written.
type Operation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID     string             `bson:"document_id" json:"doc_id"`
	UserID         string             `bson:"user_id" json:"user_id"`
	BaseVersion    int64              `bson:"base_version" json:"base_version"`
	Position       int                `bson:"position" json:"position"`
	InsertText     string             `bson:"insert_text" json:"insert_text"`
	DeleteLen      int                `bson:"delete_len" json:"delete_len"`
	AppliedVersion int64              `bson:"applied_version" json:"applied_version"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Copy returns a deep copy of the operation.
func (o *Operation) Copy() *Operation {
	if o == nil {
		return nil
	}
	out := &Operation{}
	if err := copier.CopyWithOption(out, o, copier.Option{DeepCopy: true}); err != nil {
		clone := *o
		return &clone
	}
	return out
}
