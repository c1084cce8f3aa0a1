package migration

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hanchul-app/koquest/koquest/gamification"
)

func testImporter() *Importer {
	calc := gamification.NewCalculator(gamification.NewDefaultConfig())
	return NewImporter(nil, ".", calc)
}

// marshalDump concatenates the framed BSON encoding of each user, the same
// layout mongodump writes.
func marshalDump(t *testing.T, users ...LegacyUser) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, u := range users {
		doc, err := bson.Marshal(u)
		if err != nil {
			t.Fatalf("marshal legacy user: %v", err)
		}
		buf.Write(doc)
	}
	return buf.Bytes()
}

func TestDecodeUserDocuments(t *testing.T) {
	dump := marshalDump(t,
		LegacyUser{UserID: "u1", Username: "mina", TotalXP: 250},
		LegacyUser{UserID: "u2", Username: "sora", TotalXP: 40, Achievements: []string{"first_search"}},
	)

	users, err := decodeUserDocuments(bytes.NewReader(dump))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("decoded %d users, want 2", len(users))
	}
	if users[0].UserID != "u1" || users[0].TotalXP != 250 {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[1].Username != "sora" || len(users[1].Achievements) != 1 {
		t.Errorf("users[1] = %+v", users[1])
	}
}

func TestDecodeUserDocuments_EmptyStream(t *testing.T) {
	users, err := decodeUserDocuments(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("decoded %d users from an empty stream", len(users))
	}
}

func TestDecodeUserDocuments_TruncatedFrame(t *testing.T) {
	dump := marshalDump(t, LegacyUser{UserID: "u1", TotalXP: 250})

	// Cut the document short after its length prefix.
	if _, err := decodeUserDocuments(bytes.NewReader(dump[:len(dump)-3])); err == nil {
		t.Fatal("truncated document must fail")
	}

	// A lone partial length prefix is also a broken dump, not EOF.
	if _, err := decodeUserDocuments(bytes.NewReader(dump[:2])); err == nil {
		t.Fatal("partial length prefix must fail")
	}
}

func TestDecodeUserDocuments_RejectsBadLength(t *testing.T) {
	bad := make([]byte, 4)
	binary.LittleEndian.PutUint32(bad, 3)

	_, err := decodeUserDocuments(bytes.NewReader(bad))
	if err == nil {
		t.Fatal("length prefix <= 4 must fail")
	}
	if !strings.Contains(err.Error(), "invalid document length") {
		t.Errorf("error = %v", err)
	}
}

func TestImporter_ReadLegacyDump(t *testing.T) {
	dir := t.TempDir()
	dump := marshalDump(t,
		LegacyUser{UserID: "u1", Username: "mina", TotalXP: 250},
		LegacyUser{UserID: "u2", Username: "sora", TotalXP: 40},
	)
	if err := os.WriteFile(filepath.Join(dir, "users.bson"), dump, 0o600); err != nil {
		t.Fatalf("write dump: %v", err)
	}

	calc := gamification.NewCalculator(gamification.NewDefaultConfig())
	im := NewImporter(nil, dir, calc)

	users, err := im.readLegacyDump()
	if err != nil {
		t.Fatalf("readLegacyDump: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("read %d users, want 2", len(users))
	}

	missing := NewImporter(nil, filepath.Join(dir, "nope"), calc)
	if _, err := missing.readLegacyDump(); err == nil {
		t.Fatal("missing dump file must fail")
	}
}

func TestImporter_ConvertUser(t *testing.T) {
	im := testImporter()

	tests := []struct {
		name       string
		in         LegacyUser
		wantNil    bool
		wantUserID string
		wantXP     int64
		wantLevel  int
	}{
		{
			name:       "normal user with recomputed level",
			in:         LegacyUser{UserID: "u1", Username: "mina", TotalXP: 250, Level: 99},
			wantUserID: "u1",
			wantXP:     250,
			wantLevel:  3, // dump's level field is not trusted
		},
		{
			name:       "falls back to _id",
			in:         LegacyUser{ID: "legacy-42", TotalXP: 50},
			wantUserID: "legacy-42",
			wantXP:     50,
			wantLevel:  1,
		},
		{
			name:       "negative xp clamps to zero",
			in:         LegacyUser{UserID: "u2", TotalXP: -10},
			wantUserID: "u2",
			wantXP:     0,
			wantLevel:  1,
		},
		{
			name:    "no identifier is skipped",
			in:      LegacyUser{Username: "ghost", TotalXP: 500},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := im.convertUser(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a converted user")
			}
			if got.UserID != tt.wantUserID {
				t.Errorf("UserID = %q, want %q", got.UserID, tt.wantUserID)
			}
			if got.TotalXP != tt.wantXP {
				t.Errorf("TotalXP = %d, want %d", got.TotalXP, tt.wantXP)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %d, want %d", got.Level, tt.wantLevel)
			}
			if got.Achievements == nil {
				t.Error("Achievements must never be nil")
			}
		})
	}
}

func TestImporter_ConvertUserPrefersExplicitUserID(t *testing.T) {
	im := testImporter()
	got := im.convertUser(LegacyUser{ID: "mongo-oid", UserID: "u7"})
	if got == nil || got.UserID != "u7" {
		t.Fatalf("got %+v, want userId u7 over _id", got)
	}
}
