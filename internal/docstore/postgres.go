package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// document is one top-level record (users/{uid} or games/{code}) stored as a
// JSONB row. Paths below the record are resolved inside the JSON value.
type document struct {
	Path  string `gorm:"primaryKey;size:512"`
	Value string `gorm:"type:jsonb;not null"`
}

func (document) TableName() string { return "documents" }

// Postgres is the durable Store implementation. Change notifications fan out
// in-process only; the wire protocol does not assume cross-process push.
type Postgres struct {
	db *gorm.DB

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

// OpenPostgres connects, migrates the documents table, and returns the store.
func OpenPostgres(dsn string) (*Postgres, error) {
	customLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: customLogger})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	log.Println("Document store connected and migrated.")

	return &Postgres{db: db, subs: make(map[int]*subscriber)}, nil
}

// docKey splits a path into the row key (first two segments) and the
// remainder resolved inside the row's JSON value.
func docKey(path string) (key string, rest []string, err error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", nil, err
	}
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("docstore: path %q does not address a document", path)
	}
	return segs[0] + "/" + segs[1], segs[2:], nil
}

func (p *Postgres) Read(ctx context.Context, path string) (any, error) {
	key, rest, err := docKey(path)
	if err != nil {
		return nil, err
	}
	var doc document
	err = p.db.WithContext(ctx).First(&doc, "path = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal([]byte(doc.Value), &value); err != nil {
		return nil, fmt.Errorf("corrupt document %s: %w", key, err)
	}
	if len(rest) == 0 {
		return value, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	return getAt(obj, rest), nil
}

func (p *Postgres) Write(ctx context.Context, path string, value any) error {
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	return p.mutate(ctx, path, func(current any) (any, error) {
		return norm, nil
	})
}

func (p *Postgres) Update(ctx context.Context, path string, merge map[string]any) error {
	// An empty (or nil) merge changes nothing. Normalizing it would yield
	// untyped nil, not an empty map.
	if len(merge) == 0 {
		return nil
	}
	norm, err := normalize(merge)
	if err != nil {
		return err
	}
	return p.mutate(ctx, path, func(current any) (any, error) {
		obj, ok := current.(map[string]any)
		if !ok {
			obj = make(map[string]any)
		}
		for k, v := range norm.(map[string]any) {
			if v == nil {
				delete(obj, k)
			} else {
				obj[k] = v
			}
		}
		return obj, nil
	})
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	return p.mutate(ctx, path, func(any) (any, error) { return nil, nil })
}

func (p *Postgres) Transaction(ctx context.Context, path string, fn func(current any) (any, error)) error {
	return p.mutate(ctx, path, func(current any) (any, error) {
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		return normalize(next)
	})
}

// mutate applies fn to the value at path inside a row-locked transaction,
// then notifies overlapping subscribers.
func (p *Postgres) mutate(ctx context.Context, path string, fn func(current any) (any, error)) error {
	key, rest, err := docKey(path)
	if err != nil {
		return err
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc document
		found := true
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doc, "path = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return err
		}

		var root any
		if found {
			if err := json.Unmarshal([]byte(doc.Value), &root); err != nil {
				return fmt.Errorf("corrupt document %s: %w", key, err)
			}
		}

		// Resolve the target inside the row value.
		var current any = root
		if len(rest) > 0 {
			if obj, ok := root.(map[string]any); ok {
				current = getAt(obj, rest)
			} else {
				current = nil
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if len(rest) == 0 {
			root = next
		} else {
			obj, ok := root.(map[string]any)
			if !ok {
				obj = make(map[string]any)
			}
			setAt(obj, rest, next)
			if len(obj) == 0 {
				root = nil
			} else {
				root = obj
			}
		}

		if root == nil {
			if found {
				return tx.Delete(&document{}, "path = ?", key).Error
			}
			return nil
		}
		raw, err := json.Marshal(root)
		if err != nil {
			return err
		}
		doc.Path = key
		doc.Value = string(raw)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&doc).Error
	})
	if err != nil {
		return err
	}

	p.notify(ctx, path)
	return nil
}

func (p *Postgres) Subscribe(path string, onChange func(any)) UnsubscribeFunc {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	sub := newSubscriber(path, onChange)
	p.subs[id] = sub
	p.mu.Unlock()

	if v, err := p.Read(context.Background(), path); err == nil {
		sub.push(v)
	} else {
		sub.push(nil)
	}

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
		sub.stop()
	}
}

func (p *Postgres) notify(ctx context.Context, path string) {
	p.mu.Lock()
	affected := make([]*subscriber, 0)
	for _, sub := range p.subs {
		if pathsOverlap(sub.path, path) {
			affected = append(affected, sub)
		}
	}
	p.mu.Unlock()

	for _, sub := range affected {
		v, err := p.Read(ctx, sub.path)
		if err != nil {
			log.Printf("docstore: notify read %s: %v", sub.path, err)
			continue
		}
		sub.push(v)
	}
}

// Healthy pings the underlying connection.
func (p *Postgres) Healthy(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

var _ Store = (*Postgres)(nil)
var _ Store = (*Memory)(nil)
