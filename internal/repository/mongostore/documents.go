package mongostore

import (
	"time"

	"reflexion/internal/models"
)

// Documents are decoded into these shapes and converted with validation,
// so a malformed document never reaches the services.

type userDoc struct {
	ID                 string    `bson:"_id"`
	Email              string    `bson:"email"`
	Password           string    `bson:"password"`
	Nickname           string    `bson:"nickname"`
	BirthDate          string    `bson:"birthDate"`
	Gender             string    `bson:"gender"`
	InterestedIn       string    `bson:"interestedIn"`
	Bio                string    `bson:"bio,omitempty"`
	Authors            string    `bson:"authors,omitempty"`
	Credo              string    `bson:"credo,omitempty"`
	PhotoPath          string    `bson:"photoPath,omitempty"`
	SubscriptionStatus string    `bson:"subscriptionStatus"`
	CreatedAt          time.Time `bson:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

func userToDoc(u *models.User) userDoc {
	status := u.SubscriptionStatus
	if status == "" {
		status = models.SubscriptionInactive
	}
	return userDoc{
		ID:                 u.ID,
		Email:              u.Email,
		Password:           u.Password,
		Nickname:           u.Nickname,
		BirthDate:          u.BirthDate,
		Gender:             u.Gender,
		InterestedIn:       u.InterestedIn,
		Bio:                u.Bio,
		Authors:            u.Authors,
		Credo:              u.Credo,
		PhotoPath:          u.PhotoPath,
		SubscriptionStatus: string(status),
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (d userDoc) toModel() (*models.User, error) {
	u := &models.User{
		ID:                 d.ID,
		Email:              d.Email,
		Password:           d.Password,
		Nickname:           d.Nickname,
		BirthDate:          d.BirthDate,
		Gender:             d.Gender,
		InterestedIn:       d.InterestedIn,
		Bio:                d.Bio,
		Authors:            d.Authors,
		Credo:              d.Credo,
		PhotoPath:          d.PhotoPath,
		SubscriptionStatus: models.SubscriptionStatus(d.SubscriptionStatus),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if err := u.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("User", d.ID, err)
	}
	return u, nil
}

type postDoc struct {
	ID          string    `bson:"_id"`
	AuthorID    string    `bson:"authorId"`
	DisplayName string    `bson:"displayName"`
	Body        string    `bson:"bodyText"`
	Authors     string    `bson:"authors,omitempty"`
	Credo       string    `bson:"credo,omitempty"`
	Age         int       `bson:"age,omitempty"`
	Gender      string    `bson:"gender,omitempty"`
	Interested  string    `bson:"interestedIn,omitempty"`
	Feed        string    `bson:"feed"`
	LikeCount   int       `bson:"likeCount"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func postToDoc(p *models.Post) postDoc {
	return postDoc{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		DisplayName: p.DisplayName,
		Body:        p.Body,
		Authors:     p.Authors,
		Credo:       p.Credo,
		Age:         p.AuthorAge,
		Gender:      p.AuthorGender,
		Interested:  p.AuthorInterestedIn,
		Feed:        p.Feed,
		LikeCount:   p.LikeCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d postDoc) toModel() (*models.Post, error) {
	p := &models.Post{
		ID:                 d.ID,
		AuthorID:           d.AuthorID,
		DisplayName:        d.DisplayName,
		Body:               d.Body,
		Authors:            d.Authors,
		Credo:              d.Credo,
		AuthorAge:          d.Age,
		AuthorGender:       d.Gender,
		AuthorInterestedIn: d.Interested,
		Feed:               d.Feed,
		LikeCount:          d.LikeCount,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if err := p.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("Post", d.ID, err)
	}
	return p, nil
}

type likeDoc struct {
	PostID    string    `bson:"postId"`
	UserID    string    `bson:"userId"`
	Counted   bool      `bson:"counted"`
	CreatedAt time.Time `bson:"createdAt"`
}

type connectionDoc struct {
	ID               string    `bson:"_id"`
	ParticipantA     string    `bson:"participantA"`
	ParticipantB     string    `bson:"participantB"`
	RequestedBy      string    `bson:"requestedBy"`
	Status           string    `bson:"status"`
	InteractionCount int       `bson:"interactionCount"`
	RevealedBy       []string  `bson:"revealedBy"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func connectionToDoc(c *models.Connection) connectionDoc {
	revealed := c.RevealedBy
	if revealed == nil {
		revealed = []string{}
	}
	return connectionDoc{
		ID:               c.ID,
		ParticipantA:     c.ParticipantA,
		ParticipantB:     c.ParticipantB,
		RequestedBy:      c.RequestedBy,
		Status:           string(c.Status),
		InteractionCount: c.InteractionCount,
		RevealedBy:       revealed,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (d connectionDoc) toModel() (*models.Connection, error) {
	revealed := d.RevealedBy
	if revealed == nil {
		revealed = []string{}
	}
	c := &models.Connection{
		ID:               d.ID,
		ParticipantA:     d.ParticipantA,
		ParticipantB:     d.ParticipantB,
		RequestedBy:      d.RequestedBy,
		Status:           models.ConnectionStatus(d.Status),
		InteractionCount: d.InteractionCount,
		RevealedBy:       revealed,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if err := c.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("Connection", d.ID, err)
	}
	return c, nil
}

// messageDoc carries a counted flag: a message is inserted uncounted, then
// claimed, then the parent counter is incremented. A message can therefore
// exist uncounted after a crash, but is never counted twice.
type messageDoc struct {
	ID              string    `bson:"_id"`
	ConnectionID    string    `bson:"connectionId"`
	SenderID        string    `bson:"senderId"`
	Text            string    `bson:"text"`
	ClientMessageID string    `bson:"clientMessageId"`
	Counted         bool      `bson:"counted"`
	CreatedAt       time.Time `bson:"createdAt"`
}

func messageToDoc(m *models.Message) messageDoc {
	return messageDoc{
		ID:              m.ID,
		ConnectionID:    m.ConnectionID,
		SenderID:        m.SenderID,
		Text:            m.Text,
		ClientMessageID: m.ClientMessageID,
		CreatedAt:       m.CreatedAt,
	}
}

func (d messageDoc) toModel() (*models.Message, error) {
	m := &models.Message{
		ID:              d.ID,
		ConnectionID:    d.ConnectionID,
		SenderID:        d.SenderID,
		Text:            d.Text,
		ClientMessageID: d.ClientMessageID,
		CreatedAt:       d.CreatedAt,
	}
	if err := m.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("Message", d.ID, err)
	}
	return m, nil
}
