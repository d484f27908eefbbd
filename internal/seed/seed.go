package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reflexion/internal/disclosure"
	"reflexion/internal/models"
	"reflexion/internal/repository"
	"reflexion/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	genders      = []string{models.GenderMale, models.GenderFemale, models.GenderNonBinary, models.GenderOther}
	interests    = []string{models.InterestedInMale, models.InterestedInFemale, models.InterestedInEveryone}
	namedFeeds   = []string{models.FeedPareja, models.FeedAmistad, models.FeedNocturno}
	favouriteLit = []string{
		"Cortázar", "Pizarnik", "Borges", "Storni", "Neruda", "Mistral", "Benedetti",
		"Bolaño", "Ocampo", "Rulfo", "Lorca", "Machado", "Sabato", "Castellanos",
	}
)

// Summary counts what a run created.
type Summary struct {
	UserIDs     []string
	Users       int
	Posts       int
	Likes       int
	Connections int
	Messages    int
	Revealed    int
}

// Seeder writes fake data through a repository.Store.
type Seeder struct {
	store *repository.Store
	plan  Plan
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewSeeder builds a seeder. A zero plan.Seed picks a time-based seed.
func NewSeeder(store *repository.Store, plan Plan) *Seeder {
	seed := plan.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		store: store,
		plan:  plan,
		faker: gofakeit.New(seed),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run seeds users first, then posts and likes, then connections with
// their messages and reveals.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := s.plan.Validate(); err != nil {
		return sum, err
	}

	users, err := s.seedUsers(ctx)
	if err != nil {
		return sum, err
	}
	sum.Users = len(users)
	for _, u := range users {
		sum.UserIDs = append(sum.UserIDs, u.ID)
	}

	posts, likes, err := s.seedPosts(ctx, users)
	if err != nil {
		return sum, err
	}
	sum.Posts, sum.Likes = posts, likes

	if err := s.seedConnections(ctx, users, &sum); err != nil {
		return sum, err
	}

	slog.Info("seed finished",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("likes", sum.Likes),
		slog.Int("connections", sum.Connections),
		slog.Int("messages", sum.Messages),
		slog.Int("revealed", sum.Revealed),
	)
	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	// One hash for everyone; bcrypt per user would dominate the run.
	hashed, err := bcrypt.GenerateFromPassword([]byte(s.plan.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	now := s.now()
	users := make([]*models.User, 0, s.plan.Users)
	for i := 0; i < s.plan.Users; i++ {
		first := s.faker.FirstName()
		u := &models.User{
			ID:                 uuid.NewString(),
			Email:              fmt.Sprintf("%s.%d@reflexion.test", strings.ToLower(first), i+1),
			Password:           string(hashed),
			Nickname:           fmt.Sprintf("%s%d", first, s.faker.Number(10, 99)),
			BirthDate:          s.faker.DateRange(now.AddDate(-60, 0, 0), now.AddDate(-18, 0, 0)).Format(validation.BirthDateLayout),
			Gender:             s.faker.RandomString(genders),
			InterestedIn:       s.faker.RandomString(interests),
			Bio:                s.faker.Sentence(12),
			Authors:            s.faker.RandomString(favouriteLit) + ", " + s.faker.RandomString(favouriteLit),
			Credo:              s.faker.Sentence(8),
			SubscriptionStatus: models.SubscriptionInactive,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.store.Users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %d: %w", i+1, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// Body builds a post body that fits the base limit.
func (s *Seeder) Body() string {
	body := s.faker.Paragraph(s.faker.Number(1, 4), s.faker.Number(2, 5), 12, "\n\n")
	runes := []rune(body)
	if len(runes) > disclosure.BaseLimit {
		body = strings.TrimSpace(string(runes[:disclosure.BaseLimit]))
	}
	return body
}

func (s *Seeder) seedPosts(ctx context.Context, users []*models.User) (posts, likes int, err error) {
	now := s.now()
	for _, author := range users {
		for j := 0; j < s.plan.PostsPerUser; j++ {
			created := now.Add(-time.Duration(s.faker.Number(0, 90*24)) * time.Hour)
			p := &models.Post{
				ID:                 uuid.NewString(),
				AuthorID:           author.ID,
				DisplayName:        author.DisplayName(),
				Body:               s.Body(),
				Authors:            author.Authors,
				Credo:              author.Credo,
				AuthorAge:          validation.AgeOn(author.BirthDate, now),
				AuthorGender:       author.Gender,
				AuthorInterestedIn: author.InterestedIn,
				Feed:               s.faker.RandomString(namedFeeds),
				CreatedAt:          created,
				UpdatedAt:          created,
			}
			if err := s.store.Posts.Create(ctx, p); err != nil {
				return posts, likes, fmt.Errorf("create post: %w", err)
			}
			posts++

			n, err := s.like(ctx, p.ID, users)
			likes += n
			if err != nil {
				return posts, likes, err
			}
		}
	}
	return posts, likes, nil
}

// like has a random subset of users like postID, each at most once.
func (s *Seeder) like(ctx context.Context, postID string, users []*models.User) (int, error) {
	want := min(s.plan.MaxLikesPerPost, len(users))
	if want == 0 {
		return 0, nil
	}
	want = s.faker.Number(0, want)

	count := 0
	for _, idx := range s.perm(len(users))[:want] {
		liked, err := s.store.Posts.Like(ctx, postID, users[idx].ID)
		if err != nil {
			return count, fmt.Errorf("like post %s: %w", postID, err)
		}
		if liked {
			count++
		}
	}
	return count, nil
}

func (s *Seeder) seedConnections(ctx context.Context, users []*models.User, sum *Summary) error {
	now := s.now()
	seen := make(map[string]bool, s.plan.Connections)

	// Pairs that already exist in the store are skipped, so cap the draws.
	for attempts := 0; sum.Connections < s.plan.Connections; attempts++ {
		if attempts > max(10*s.plan.Connections, 1000) {
			return fmt.Errorf("only %d of %d connections could be created", sum.Connections, s.plan.Connections)
		}
		pick := s.perm(len(users))[:2]
		from, to := users[pick[0]], users[pick[1]]
		conn, err := models.NewConnection(from.ID, to.ID, now)
		if err != nil {
			return err
		}
		if seen[conn.ID] {
			continue
		}
		seen[conn.ID] = true

		created, err := s.store.Connections.CreateIfAbsent(ctx, conn)
		if err != nil {
			return fmt.Errorf("create connection %s: %w", conn.ID, err)
		}
		if !created {
			continue
		}
		sum.Connections++

		switch s.faker.Number(0, 3) {
		case 0:
			if _, err := s.store.Connections.TransitionStatus(ctx, conn.ID, models.ConnectionStatusPending, models.ConnectionStatusRejected); err != nil {
				return err
			}
		case 1, 2:
			if _, err := s.store.Connections.TransitionStatus(ctx, conn.ID, models.ConnectionStatusPending, models.ConnectionStatusAccepted); err != nil {
				return err
			}
		}

		sent, err := s.converse(ctx, conn, now)
		sum.Messages += sent
		if err != nil {
			return err
		}

		if sent >= models.DefaultRevealThreshold && s.faker.Float64Range(0, 1) < s.plan.RevealRatio {
			for _, id := range conn.Participants() {
				if err := s.store.Connections.AddRevealer(ctx, conn.ID, id); err != nil {
					return fmt.Errorf("reveal %s: %w", conn.ID, err)
				}
			}
			sum.Revealed++
		}
	}
	return nil
}

// converse appends a random number of alternating messages to conn.
func (s *Seeder) converse(ctx context.Context, conn *models.Connection, start time.Time) (int, error) {
	if s.plan.MessagesPerConnection == 0 {
		return 0, nil
	}
	n := s.faker.Number(1, s.plan.MessagesPerConnection)
	participants := conn.Participants()

	sent := 0
	for i := 0; i < n; i++ {
		msg := &models.Message{
			ID:              uuid.NewString(),
			ConnectionID:    conn.ID,
			SenderID:        participants[i%2],
			Text:            s.faker.Sentence(s.faker.Number(3, 20)),
			ClientMessageID: fmt.Sprintf("seed-%d", i),
			CreatedAt:       start.Add(time.Duration(i) * time.Minute),
		}
		_, created, err := s.store.Connections.AppendMessage(ctx, msg)
		if err != nil {
			return sent, fmt.Errorf("append message to %s: %w", conn.ID, err)
		}
		if created {
			sent++
		}
	}
	return sent, nil
}

// perm returns a pseudo-random permutation of [0, n) drawn from the faker.
func (s *Seeder) perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.faker.Number(0, i)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
