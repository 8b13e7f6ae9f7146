package models

import (
	"fmt"
	"time"
)

// Like marks that a user liked a post. Existence is the whole record:
// present means liked, absent means not liked.
// Collection: likes, _id = <postID>_<userID>
type Like struct {
	ID        string    `bson:"_id" json:"id"`
	PostID    string    `bson:"post_id" json:"post_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// LikeID builds the deterministic like document id
func LikeID(postID, userID string) string {
	return fmt.Sprintf("%s_%s", postID, userID)
}

// Comment is a user comment on a post
// Collection: comments
type Comment struct {
	ID        string    `bson:"_id" json:"id"`
	PostID    string    `bson:"post_id" json:"post_id"`
	AuthorID  string    `bson:"author_id" json:"author_id"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Follow is a follow edge. One document per edge; the counter reactor
// adjusts followingCount on the follower and followersCount on the
// followee from this single document's create/delete events.
// Collection: follows, _id = <followerID>_<followeeID>
type Follow struct {
	ID         string    `bson:"_id" json:"id"`
	FollowerID string    `bson:"follower_id" json:"follower_id"`
	FolloweeID string    `bson:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// FollowID builds the deterministic follow document id
func FollowID(followerID, followeeID string) string {
	return fmt.Sprintf("%s_%s", followerID, followeeID)
}
