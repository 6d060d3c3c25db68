package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
	tu "github.com/desertthunder/binder/internal/testing"
)

const baseSet = `{
  "name": "Base",
  "displayName": "Base Set",
  "totalCards": 3,
  "setCode": "BS",
  "cards": {
    "10": {"name": "Mewtwo", "rarity": "Rare Holo"},
    "2": {"name": "Blastoise", "rarity": "Rare Holo"},
    "58": {"name": "Pikachu", "rarity": "Common", "imageId": "base1-58"}
  }
}`

const customSet = `{
  "name": "It's Pikachu",
  "cards": {
    "12": {"name": "Pikachu", "apiId": "base1-58", "variants": ["1st-edition", "unlimited"]},
    "14": {"name": "Surfing Pikachu", "apiId": "basep-28"}
  }
}`

const lorcanaSet = `{
  "name": "The First Chapter",
  "cards": {
    "1": {"name": "Ariel", "rarity": "Common", "dreambornId": "001-001"}
  }
}`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tu.MustWriteFile(t, filepath.Join(dir, "pokemon", "official-sets", "base1.json"), baseSet)
	tu.MustWriteFile(t, filepath.Join(dir, "pokemon", "official-sets", "broken.json"), `{"cards": `)
	tu.MustWriteFile(t, filepath.Join(dir, "pokemon", "custom-sets", "its-pikachu.json"), customSet)
	tu.MustWriteFile(t, filepath.Join(dir, "lorcana", "sets", "first-chapter.json"), lorcanaSet)
	return dir
}

func TestLoad(t *testing.T) {
	var logs strings.Builder
	logger := shared.NewLogger(&logs)

	c, err := Load(context.Background(), LoadOpts{Dir: writeCatalog(t), Logger: logger})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Run("skips malformed files", func(t *testing.T) {
		if c.Len() != 3 {
			t.Errorf("expected 3 sets, got %d", c.Len())
		}
		if !strings.Contains(logs.String(), "broken.json") {
			t.Error("expected the broken set to be logged")
		}
	})

	t.Run("scopes in load order", func(t *testing.T) {
		got := strings.Join(c.Scopes(), ",")
		if got != "base1,custom-its-pikachu,first-chapter" {
			t.Errorf("unexpected scopes %s", got)
		}
	})

	t.Run("cards sorted numerically", func(t *testing.T) {
		set, ok := c.Lookup("base1")
		if !ok {
			t.Fatal("expected base1")
		}
		var nums []string
		for _, card := range set.Cards {
			nums = append(nums, card.Number)
		}
		if strings.Join(nums, ",") != "2,10,58" {
			t.Errorf("unexpected order %v", nums)
		}
		if set.Cards[0].Type != "pokemon" {
			t.Errorf("expected default type pokemon, got %s", set.Cards[0].Type)
		}
	})

	t.Run("custom sets default to single variant", func(t *testing.T) {
		set, _ := c.Lookup("custom-its-pikachu")
		if set.Kind != models.KindCustom || !set.SingleVariantOnly {
			t.Errorf("unexpected custom set %+v", set)
		}
	})

	t.Run("lorcana defaults", func(t *testing.T) {
		set, _ := c.Lookup("first-chapter")
		if set.Cards[0].Type != "character" || set.Cards[0].DreambornID != "001-001" {
			t.Errorf("unexpected lorcana card %+v", set.Cards[0])
		}
	})

	t.Run("Sets by kind", func(t *testing.T) {
		if got := c.Sets(models.KindLorcana); len(got) != 1 || got[0].Key != "first-chapter" {
			t.Errorf("unexpected lorcana sets %v", got)
		}
		if got := c.Sets(); len(got) != 3 {
			t.Errorf("expected all sets, got %d", len(got))
		}
	})

	t.Run("Card", func(t *testing.T) {
		_, card, err := c.Card("base1", "058")
		if err != nil {
			t.Fatalf("Card() error = %v", err)
		}
		if card.Name != "Pikachu" {
			t.Errorf("unexpected card %+v", card)
		}

		if _, _, err := c.Card("nope", "1"); !errors.Is(err, shared.ErrSetNotFound) {
			t.Errorf("expected ErrSetNotFound, got %v", err)
		}
		if _, _, err := c.Card("base1", "999"); !errors.Is(err, shared.ErrCardNotFound) {
			t.Errorf("expected ErrCardNotFound, got %v", err)
		}
	})

	t.Run("Applicable", func(t *testing.T) {
		v, ok := c.Applicable("custom-its-pikachu", "12")
		if !ok || strings.Join(v, ",") != "1st-edition,unlimited" {
			t.Errorf("unexpected variants %v, %v", v, ok)
		}
		if _, ok := c.Applicable("custom-its-pikachu", "99"); ok {
			t.Error("unknown card should not be catalogued")
		}
	})
}

func TestLoadMissingDirectory(t *testing.T) {
	c, err := Load(context.Background(), LoadOpts{Dir: t.TempDir(), Logger: shared.NewLogger(&strings.Builder{})})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty catalog, got %d sets", c.Len())
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, LoadOpts{Dir: writeCatalog(t), Logger: shared.NewLogger(&strings.Builder{})})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseSet(t *testing.T) {
	t.Run("explicit singleVariantOnly false on custom", func(t *testing.T) {
		set, err := ParseSet("x", models.KindCustom, []byte(`{"singleVariantOnly": false, "cards": {"1": {"name": "a"}}}`))
		if err != nil {
			t.Fatalf("ParseSet() error = %v", err)
		}
		if set.SingleVariantOnly {
			t.Error("explicit false should win over the custom default")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseSet("x", models.KindOfficial, []byte(`[`))
		if !errors.Is(err, shared.ErrInvalidSet) {
			t.Errorf("expected ErrInvalidSet, got %v", err)
		}
	})

	t.Run("duplicate numbers after normalisation", func(t *testing.T) {
		_, err := ParseSet("x", models.KindOfficial, []byte(`{"cards": {"7": {}, "007": {}}}`))
		if !errors.Is(err, shared.ErrInvalidSet) {
			t.Errorf("expected ErrInvalidSet, got %v", err)
		}
	})
}

func TestCardNumber(t *testing.T) {
	tc := map[string]string{
		"7":    "7",
		"007":  "7",
		"12a":  "12",
		" 42 ": "42",
		"SV01": "SV01",
	}
	for in, want := range tc {
		if got := CardNumber(in); got != want {
			t.Errorf("CardNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCatalogAdd(t *testing.T) {
	c, err := New(&models.Set{Key: "a", Kind: models.KindOfficial})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Add(&models.Set{Key: "a", Kind: models.KindOfficial, Name: "replaced"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if c.Len() != 1 || len(c.Scopes()) != 1 {
		t.Errorf("replacing a set should not duplicate its scope")
	}
	if set, _ := c.Lookup("a"); set.Name != "replaced" {
		t.Errorf("expected replaced set, got %s", set.Name)
	}
	if err := c.Add(&models.Set{Kind: models.KindOfficial}); !errors.Is(err, shared.ErrInvalidSet) {
		t.Errorf("expected ErrInvalidSet, got %v", err)
	}
}
