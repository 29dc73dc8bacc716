package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "rentalcore/internal/core/context"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
)

// CompressionAlgo specifies how the changes column is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID              `db:"id" json:"id"`
	EntityType        string             `db:"entity_type" json:"entityType"`
	EntityID          id.ID              `db:"entity_id" json:"entityId"`
	Action            domain.AuditAction `db:"action" json:"action"`
	UserID            string             `db:"user_id" json:"userId,omitempty"`
	UserEmail         string             `db:"user_email" json:"userEmail,omitempty"`
	Changes           json.RawMessage    `db:"changes" json:"changes"`
	ChangesCompressed []byte             `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo    `db:"compression_algo" json:"-"`
	TraceID           string             `db:"trace_id" json:"traceId,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"createdAt"`
}

// AuditService writes and reads sys_audit.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ domain.AuditRecorder = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// Log records an audit entry in the current transaction, if any.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if user := appctx.GetUser(ctx); user != nil {
		if entry.UserID == "" {
			entry.UserID = user.UserID
		}
		if entry.UserEmail == "" {
			entry.UserEmail = user.Email
		}
	}
	if entry.TraceID == "" {
		entry.TraceID = appctx.GetTraceID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo = s.compress(entry.Changes)

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, user_email,
			changes, changes_compressed, compression_algo, trace_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.UserEmail,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.TraceID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// LogChange implements domain.AuditRecorder.
func (s *AuditService) LogChange(ctx context.Context, entityType string, entityID id.ID, action domain.AuditAction, changes map[string]any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// GetEntityHistory returns the newest limit entries of an entity, decompressed.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id, user_email,
		       changes, changes_compressed, compression_algo, trace_id, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.UserEmail,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.TraceID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Changes, err = s.decompress(e); err != nil {
			return nil, err
		}
		e.ChangesCompressed = nil
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// History implements domain.AuditReader.
func (s *AuditService) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]domain.AuditHistoryEntry, error) {
	entries, err := s.GetEntityHistory(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditHistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = domain.AuditHistoryEntry{
			Action:    e.Action,
			UserID:    e.UserID,
			Changes:   e.Changes,
			TraceID:   e.TraceID,
			CreatedAt: e.CreatedAt,
		}
	}
	return out, nil
}

func (s *AuditService) compress(changes []byte) (json.RawMessage, []byte, CompressionAlgo) {
	if len(changes) <= s.compressThreshold {
		return changes, nil, CompressionNone
	}
	return nil, s.encoder.EncodeAll(changes, nil), CompressionZstd
}

func (s *AuditService) decompress(e AuditEntry) (json.RawMessage, error) {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return e.Changes, nil
	}
	out, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress changes: %w", err)
	}
	return out, nil
}
