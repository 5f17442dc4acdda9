package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB opens an in-memory database whose clock advances one second per
// call, so ordering by creation time is deterministic.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	db.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	return db
}

func TestPatients(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		db := newTestDB(t)

		created, err := db.CreatePatient(ctx, Patient{
			FirstName:   " Jeanne ",
			LastName:    "Favre",
			BirthDate:   "1941-06-12",
			Pathologies: []string{"diabète type 2", "insuffisance cardiaque"},
			Notes:       "Allergie à la pénicilline",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Jeanne", created.FirstName)

		got, err := db.GetPatient(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jeanne Favre", got.FullName())
		assert.Equal(t, []string{"diabète type 2", "insuffisance cardiaque"}, got.Pathologies)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.ArchivedAt)
	})

	t.Run("validation", func(t *testing.T) {
		db := newTestDB(t)

		_, err := db.CreatePatient(ctx, Patient{FirstName: "Sans"})
		require.ErrorIs(t, err, ErrInvalid)

		_, err = db.CreatePatient(ctx, Patient{LastName: "Favre", BirthDate: "12.06.1941"})
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("missing patient", func(t *testing.T) {
		db := newTestDB(t)

		_, err := db.GetPatient(ctx, "nope")
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, db.ArchivePatient(ctx, "nope"), ErrNotFound)
	})

	t.Run("list is sorted and hides archived", func(t *testing.T) {
		db := newTestDB(t)

		for _, name := range []string{"Rochat", "bonvin", "Maret"} {
			_, err := db.CreatePatient(ctx, Patient{FirstName: "X", LastName: name})
			require.NoError(t, err)
		}

		all, err := db.ListPatients(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"bonvin", "Maret", "Rochat"},
			[]string{all[0].LastName, all[1].LastName, all[2].LastName})

		require.NoError(t, db.ArchivePatient(ctx, all[1].ID))
		require.ErrorIs(t, db.ArchivePatient(ctx, all[1].ID), ErrNotFound)

		active, err := db.ListPatients(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		archived, err := db.GetPatient(ctx, all[1].ID)
		require.NoError(t, err)
		assert.NotNil(t, archived.ArchivedAt)
	})
}

func TestPatientAge(t *testing.T) {
	now := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		birth string
		want  int
	}{
		{"1941-06-12", 82},
		{"1941-06-11", 83},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		t.Run(tt.birth, func(t *testing.T) {
			assert.Equal(t, tt.want, Patient{BirthDate: tt.birth}.Age(now))
		})
	}
}

func TestAnnotations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	patient, err := db.CreatePatient(ctx, Patient{FirstName: "Luc", LastName: "Berset"})
	require.NoError(t, err)

	t.Run("rejects empty content and unknown patient", func(t *testing.T) {
		_, err := db.SaveAnnotation(ctx, Annotation{PatientID: patient.ID, Content: "  "})
		require.ErrorIs(t, err, ErrInvalid)

		_, err = db.SaveAnnotation(ctx, Annotation{PatientID: "ghost", Content: "note"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	minutes := 30
	for _, content := range []string{"première", "deuxième", "troisième"} {
		_, err := db.SaveAnnotation(ctx, Annotation{
			PatientID:     patient.ID,
			VisitDate:     "2024-03-01",
			VisitTime:     "08:30",
			VisitDuration: &minutes,
			AudioDuration: 42,
			Transcription: "dictée " + content,
			Content:       content,
		})
		require.NoError(t, err)
	}

	t.Run("list newest first", func(t *testing.T) {
		list, err := db.ListAnnotations(ctx, patient.ID, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "troisième", list[0].Content)
		require.NotNil(t, list[0].VisitDuration)
		assert.Equal(t, 30, *list[0].VisitDuration)
		assert.Equal(t, 42, list[0].AudioDuration)

		limited, err := db.ListAnnotations(ctx, patient.ID, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("recent texts", func(t *testing.T) {
		texts, err := db.RecentAnnotationTexts(ctx, patient.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"troisième", "deuxième"}, texts)

		none, err := db.RecentAnnotationTexts(ctx, patient.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStructureTemplate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	got, err := db.StructureTemplate(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, db.SetStructureTemplate(ctx, "Soins:\nObservations:"))
	require.NoError(t, db.SetStructureTemplate(ctx, "Soins:\nObservations:\nPlan:"))

	got, err = db.StructureTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Soins:\nObservations:\nPlan:", got)

	require.NoError(t, db.SetStructureTemplate(ctx, ""))
	got, err = db.StructureTemplate(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
