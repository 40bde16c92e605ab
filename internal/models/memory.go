package models

import "time"

// MemoriesCollection holds one document per user and calendar month, id
// "YYYY-MM".
const MemoriesCollection = "memories"

// Memory is one uploaded photo attached to a day of the month. PublicID is
// the storage object key that delete requests reference.
type Memory struct {
	Day       int       `json:"day"                bson:"day"`
	ImageURL  string    `json:"imageUrl"           bson:"imageUrl"`
	PublicID  string    `json:"publicId,omitempty" bson:"publicId,omitempty"`
	CreatedAt time.Time `json:"createdAt"          bson:"createdAt"`
}

// MemoryMonth is the stored shape of a month bucket.
type MemoryMonth struct {
	Month string   `json:"month" bson:"month"`
	Items []Memory `json:"items" bson:"items"`
}
