package service

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/converter/internal/domain/model"
)

func TestArtifactRegistry_AddGetRemove(t *testing.T) {
	r := NewArtifactRegistry(10, time.Hour)

	a := &model.Artifact{Filename: "converted-1-abc.pdf", Kind: model.KindDocumentPDF}
	r.Add(a)

	got, ok := r.Get("converted-1-abc.pdf")
	if !ok {
		t.Fatal("артефакт не найден")
	}
	if got != a {
		t.Error("получен другой артефакт")
	}

	r.Remove("converted-1-abc.pdf")
	if _, ok := r.Get("converted-1-abc.pdf"); ok {
		t.Error("артефакт должен быть удалён")
	}
}

func TestArtifactRegistry_Eviction(t *testing.T) {
	r := NewArtifactRegistry(2, time.Hour)

	r.Add(&model.Artifact{Filename: "a.pdf"})
	r.Add(&model.Artifact{Filename: "b.pdf"})
	r.Add(&model.Artifact{Filename: "c.pdf"})

	if r.Len() != 2 {
		t.Errorf("Len: ожидалось 2, получено %d", r.Len())
	}
	if _, ok := r.Get("a.pdf"); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
}

func TestArtifactRegistry_TTL(t *testing.T) {
	r := NewArtifactRegistry(10, 50*time.Millisecond)
	r.Add(&model.Artifact{Filename: "a.pdf"})

	time.Sleep(150 * time.Millisecond)

	if _, ok := r.Get("a.pdf"); ok {
		t.Error("запись должна истечь по TTL")
	}
}
