// Package seed fills a development database with realistic social data so
// the pipeline can be exercised end to end: users, follow edges, and posts
// created directly in pending to trip the moderation reactors.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/docstore"
	"github.com/plumefeed/backend/internal/logger"
	"github.com/plumefeed/backend/internal/models"
)

// Seeder handles development database seeding
type Seeder struct {
	store docstore.Store
}

// NewSeeder creates a new seeder instance
func NewSeeder(store docstore.Store) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{store: store}
}

// SeedDev creates users, follow edges, pending posts, likes and comments
func (s *Seeder) SeedDev(ctx context.Context, userCount, postCount int) error {
	users, err := s.seedUsers(ctx, userCount)
	if err != nil {
		return err
	}
	if err := s.seedFollows(ctx, users); err != nil {
		return err
	}
	posts, err := s.seedPosts(ctx, users, postCount)
	if err != nil {
		return err
	}
	if err := s.seedEngagement(ctx, users, posts); err != nil {
		return err
	}

	logger.Log.Info("Dev seed complete",
		zap.Int("users", len(users)),
		zap.Int("posts", len(posts)),
	)
	return nil
}

func (s *Seeder) seedUsers(ctx context.Context, n int) ([]models.User, error) {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		u := models.User{
			ID:          uuid.New().String(),
			Handle:      gofakeit.Username(),
			DisplayName: gofakeit.Name(),
			CreatedAt:   time.Now(),
		}
		if err := s.store.Set(ctx, docstore.Users, u.ID, u); err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []models.User) error {
	for _, follower := range users {
		// Each user follows a handful of others
		for i := 0; i < 3 && len(users) > 1; i++ {
			followee := users[rand.Intn(len(users))]
			if followee.ID == follower.ID {
				continue
			}
			f := models.Follow{
				ID:         models.FollowID(follower.ID, followee.ID),
				FollowerID: follower.ID,
				FolloweeID: followee.ID,
				CreatedAt:  time.Now(),
			}
			if err := s.store.Set(ctx, docstore.Follows, f.ID, f); err != nil {
				return fmt.Errorf("seed follow: %w", err)
			}
		}
	}
	return nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []models.User, n int) ([]models.Post, error) {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[rand.Intn(len(users))]
		p := models.Post{
			ID:        uuid.New().String(),
			AuthorID:  author.ID,
			Title:     gofakeit.Sentence(4),
			Text:      gofakeit.Paragraph(1, 3, 12, " "),
			Status:    models.PostStatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.store.Set(ctx, docstore.Posts, p.ID, p); err != nil {
			return nil, fmt.Errorf("seed post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []models.User, posts []models.Post) error {
	for _, p := range posts {
		for i := 0; i < rand.Intn(4); i++ {
			liker := users[rand.Intn(len(users))]
			l := models.Like{
				ID:        models.LikeID(p.ID, liker.ID),
				PostID:    p.ID,
				UserID:    liker.ID,
				CreatedAt: time.Now(),
			}
			if err := s.store.Set(ctx, docstore.Likes, l.ID, l); err != nil {
				return fmt.Errorf("seed like: %w", err)
			}
		}
		if rand.Intn(2) == 0 {
			commenter := users[rand.Intn(len(users))]
			c := models.Comment{
				ID:        uuid.New().String(),
				PostID:    p.ID,
				AuthorID:  commenter.ID,
				Text:      gofakeit.Sentence(8),
				CreatedAt: time.Now(),
			}
			if err := s.store.Set(ctx, docstore.Comments, c.ID, c); err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
		}
	}
	return nil
}
