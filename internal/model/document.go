package model

// Document is an entry of the visible document set. ID is the stored object name,
// and Name is the identifier shared by the object store and the index.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewDocument(name string) Document {
	return Document{ID: name, Name: name}
}
