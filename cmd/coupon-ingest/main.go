// Command coupon-ingest bulk-loads user coupon grants from gzip'd CSV files.
//
// Each input file holds one grant per line as "user_id,coupon_code". Files are
// scanned concurrently; grants seen in an earlier file are dropped via a bloom
// filter so re-delivered export files do not double-grant.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/lumimart/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// grant is a single parsed user-coupon grant line.
type grant struct {
	userID   string
	couponID string
}

func main() {
	var (
		dataDir     string
		databaseURL string
		expiry      time.Duration
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing grants-*.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&expiry, "expiry", 0, "per-grant expiry override (0 = use coupon end date)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, expiry); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, expiry time.Duration) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "grants-*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob grant files")
	}
	if len(files) == 0 {
		return errors.Errorf("no grants-*.csv.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	codes, err := loadCouponCodes(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "load coupon codes")
	}

	slog.Info("scanning grant files",
		slog.Int("files", len(files)),
		slog.Int("known_codes", len(codes)),
	)

	grants, skipped, err := collectGrants(ctx, files, codes)
	if err != nil {
		return errors.Wrap(err, "collect grants")
	}

	slog.Info("grants collected",
		slog.Int("grants", len(grants)),
		slog.Uint64("skipped", skipped),
	)

	if len(grants) == 0 {
		return nil
	}

	return writeGrants(ctx, pool, grants, expiry)
}

// loadCouponCodes maps every active coupon code to its id.
func loadCouponCodes(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx, `SELECT UPPER(code), id FROM coupons WHERE is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := make(map[string]string)
	for rows.Next() {
		var code, id string
		if err := rows.Scan(&code, &id); err != nil {
			return nil, err
		}
		codes[code] = id
	}
	return codes, rows.Err()
}

// collectGrants scans all files concurrently. The shared bloom filter dedups
// grants across files; the rare false positive only drops a duplicate grant
// attempt, which the user_coupons unique constraint would reject anyway.
func collectGrants(ctx context.Context, files []string, codes map[string]string) ([]grant, uint64, error) {
	var (
		mu      sync.Mutex
		seen    = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		grants  []grant
		skipped uint64
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzFile(gctx, f, func(line string) {
				count++
				if count%progressEvery == 0 {
					slog.Info("scan progress", slog.String("file", f), slog.Uint64("lines", count))
				}

				userID, code, ok := strings.Cut(line, ",")
				if !ok {
					return
				}
				userID = strings.TrimSpace(userID)
				code = strings.ToUpper(strings.TrimSpace(code))

				couponID, known := codes[code]
				if userID == "" || !known {
					mu.Lock()
					skipped++
					mu.Unlock()
					return
				}

				key := userID + "\x00" + couponID
				mu.Lock()
				if seen.TestString(key) {
					skipped++
				} else {
					seen.AddString(key)
					grants = append(grants, grant{userID: userID, couponID: couponID})
				}
				mu.Unlock()
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			slog.Info("scan complete", slog.String("file", f), slog.Uint64("lines", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return grants, skipped, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeGrants bulk-inserts grants via COPY into a temp table, then upserts so
// existing grants survive re-runs.
func writeGrants(ctx context.Context, pool *pgxpool.Pool, grants []grant, expiry time.Duration) error {
	slog.Info("writing grants to database", slog.Int("count", len(grants)))

	var expiredAt *time.Time
	if expiry > 0 {
		t := time.Now().Add(expiry)
		expiredAt = &t
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE grant_staging (
			id         TEXT,
			user_id    TEXT,
			coupon_id  TEXT,
			expired_at TIMESTAMPTZ
		) ON COMMIT DROP
	`); err != nil {
		return errors.Wrap(err, "create staging table")
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"grant_staging"},
		[]string{"id", "user_id", "coupon_id", "expired_at"},
		pgx.CopyFromSlice(len(grants), func(i int) ([]any, error) {
			return []any{uuid.NewString(), grants[i].userID, grants[i].couponID, expiredAt}, nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "copy grants")
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_coupons (id, user_id, coupon_id, expired_at)
		SELECT id, user_id, coupon_id, expired_at FROM grant_staging
		ON CONFLICT (user_id, coupon_id) DO NOTHING
	`)
	if err != nil {
		return errors.Wrap(err, "upsert grants")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}

	slog.Info("grants written", slog.Int64("inserted", tag.RowsAffected()))
	return nil
}
