package domain

import "time"

// User is the read-only projection of an account owned by the user store.
type User struct {
	ID         string    `bson:"_id" json:"_id"`
	FullName   string    `bson:"fullName" json:"fullName"`
	Email      string    `bson:"email" json:"email"`
	ProfilePic string    `bson:"profilePic" json:"profilePic"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}
