package repository

import (
	"context"
	"log/slog"
	"time"

	"reflexion/internal/models"
	"reflexion/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// connectionRepository implements ConnectionRepository
type connectionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db, log: observability.NewRepoLogger("connections")}
}

func (r *connectionRepository) CreateIfAbsent(ctx context.Context, conn *models.Connection) (bool, error) {
	defer observability.TrackQuery("create_if_absent", "connections")()

	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(conn)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "create_if_absent", slog.String("connection_id", conn.ID))
		return false, translate(res.Error, "Connection", conn.ID)
	}
	created := res.RowsAffected > 0
	if created {
		r.log.LogCreate(ctx, slog.String("connection_id", conn.ID))
	}
	return created, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	defer observability.TrackQuery("get", "connections")()

	var conn models.Connection
	if err := r.db.WithContext(ctx).Preload("Reveals").First(&conn, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Connection", id)
	}
	conn.SyncRevealedBy()
	if err := conn.Validate(); err != nil {
		return nil, models.NewInvalidDocumentError("Connection", id, err)
	}
	return &conn, nil
}

func (r *connectionRepository) ListForUser(ctx context.Context, userID string) ([]models.Connection, error) {
	defer observability.TrackQuery("list_for_user", "connections")()

	var conns []models.Connection
	if err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Preload("Reveals").
		Order("updated_at DESC").
		Find(&conns).Error; err != nil {
		return nil, translate(err, "Connection", userID)
	}

	out := conns[:0]
	for _, c := range conns {
		c.SyncRevealedBy()
		if err := c.Validate(); err != nil {
			r.log.LogError(ctx, err, "list_for_user", slog.String("connection_id", c.ID))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *connectionRepository) TransitionStatus(ctx context.Context, id string, from, to models.ConnectionStatus) (bool, error) {
	defer observability.TrackQuery("transition_status", "connections")()

	res := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "transition_status", slog.String("connection_id", id))
		return false, translate(res.Error, "Connection", id)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.log.LogUpdate(ctx, slog.String("connection_id", id), slog.String("status", string(to)))
	return true, nil
}

func (r *connectionRepository) AddRevealer(ctx context.Context, id, userID string) error {
	defer observability.TrackQuery("add_revealer", "connection_reveals")()

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ConnectionReveal{ConnectionID: id, UserID: userID}).Error
	if err != nil {
		r.log.LogError(ctx, err, "add_revealer", slog.String("connection_id", id))
		return translate(err, "Connection", id)
	}
	r.log.LogUpdate(ctx, slog.String("connection_id", id), slog.String("op", "reveal"))
	return nil
}

func (r *connectionRepository) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	defer observability.TrackQuery("append_message", "messages")()

	var (
		stored  models.Message
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(msg)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("connection_id = ? AND client_message_id = ?", msg.ConnectionID, msg.ClientMessageID).
				First(&stored).Error
		}

		upd := tx.Model(&models.Connection{}).Where("id = ?", msg.ConnectionID).
			UpdateColumns(map[string]interface{}{
				"interaction_count": gorm.Expr("interaction_count + ?", 1),
				"updated_at":        time.Now().UTC(),
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return models.NewNotFoundError("Connection", msg.ConnectionID)
		}
		stored = *msg
		created = true
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "append_message", slog.String("connection_id", msg.ConnectionID))
		return nil, false, translate(err, "Connection", msg.ConnectionID)
	}
	if created {
		r.log.LogCreate(ctx, slog.String("connection_id", msg.ConnectionID), slog.String("message_id", msg.ID))
	}
	return &stored, created, nil
}

func (r *connectionRepository) ListMessages(ctx context.Context, connectionID string, limit, offset int) ([]models.Message, error) {
	defer observability.TrackQuery("list_messages", "messages")()

	var msgs []models.Message
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, translate(err, "Connection", connectionID)
	}
	return msgs, nil
}
