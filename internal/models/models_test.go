package models

import (
	"sync"
	"testing"
	"time"

	"gorm.io/gorm/schema"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestBaseModelBeforeCreateKeepsExistingID(t *testing.T) {
	base := BaseModel{ID: "fixed"}
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID != "fixed" {
		t.Fatalf("expected ID to be preserved, got %s", base.ID)
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel {
			u := &User{}
			return &u.BaseModel
		}},
		{"student", func() *BaseModel {
			s := &Student{}
			return &s.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		var s Student
		if err := s.BeforeCreate(nil); err != nil {
			t.Fatalf("before create: %v", err)
		}
		if _, dup := seen[s.ID]; dup {
			t.Fatalf("duplicate id generated: %s", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
}

func TestAuditLogBeforeCreateGeneratesID(t *testing.T) {
	var entry AuditLog
	if err := entry.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected audit log ID to be generated")
	}
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	if !(CacheEntry{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatal("expected past expiry to be expired")
	}
	if !(CacheEntry{ExpiresAt: now}).Expired(now) {
		t.Fatal("expected expiry at now to be expired")
	}
	if (CacheEntry{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("expected future expiry to be live")
	}
}

func TestIdentifierColumnsArePortable(t *testing.T) {
	for _, model := range []any{&User{}, &Student{}, &AuditLog{}} {
		parsed, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
		if err != nil {
			t.Fatalf("parse %T: %v", model, err)
		}
		field := parsed.LookUpField("id")
		if field == nil {
			t.Fatalf("%T has no id field", model)
		}
		if field.Size != IDSize {
			t.Fatalf("%T id size = %d, want %d", model, field.Size, IDSize)
		}
		if field.DataType != schema.String {
			t.Fatalf("%T id type = %s, want string", model, field.DataType)
		}
	}
}
