package social

import (
	"context"
	"database/sql"
	"time"
)

// Audit statuses. "partial" covers graceful degradation: the call completed
// without an exception but the platform could not take the post.
const (
	AuditSuccess = "success"
	AuditPartial = "partial"
	AuditError   = "error"
)

// AuditRecord is one append-only row in the publish log.
type AuditRecord struct {
	Timestamp time.Time
	Platform  Platform
	Preview   string
	Status    string
	Detail    string
	Actor     string
}

// AuditLog records every publish attempt and answers "when did we last
// post successfully on platform X".
type AuditLog interface {
	Record(ctx context.Context, rec AuditRecord) error
	LastPostTimes(ctx context.Context) (map[Platform]*time.Time, error)
}

// PGAuditLog appends to the social_post_log table. Rows are never updated
// or deleted by this package.
type PGAuditLog struct {
	DB *sql.DB
}

func (l *PGAuditLog) Record(ctx context.Context, rec AuditRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := l.DB.ExecContext(ctx, `
		INSERT INTO public.social_post_log (posted_at, platform, content_preview, status, detail, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ts, string(rec.Platform), rec.Preview, rec.Status, rec.Detail, rec.Actor)
	return err
}

func (l *PGAuditLog) LastPostTimes(ctx context.Context) (map[Platform]*time.Time, error) {
	out := make(map[Platform]*time.Time, len(platforms))
	for _, p := range AllPlatforms() {
		out[p] = nil
	}
	rows, err := l.DB.QueryContext(ctx, `
		SELECT platform, MAX(posted_at)
		  FROM public.social_post_log
		 WHERE status = 'success'
		 GROUP BY platform
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var platform string
		var ts time.Time
		if err := rows.Scan(&platform, &ts); err != nil {
			return nil, err
		}
		if p, perr := ParsePlatform(platform); perr == nil {
			t := ts
			out[p] = &t
		}
	}
	return out, rows.Err()
}

// contentPreview truncates content to 100 characters plus an ellipsis for
// the audit log.
func contentPreview(content string) string {
	const max = 100
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
