package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/mealkeeper/internal/auth"
	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/crypto"
	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/importer"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

const testPassword = "correct-horse-battery"

type serviceFixture struct {
	db      *database.Database
	creds   *tokenstore.Store
	service *BackupService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := auth.HashPassword(testPassword, 4)
	require.NoError(t, err)
	_, err = db.CreateAccount("tester", "tester@example.com", hash)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	creds, err := tokenstore.New(db.DB, key)
	require.NoError(t, err)

	resolver := NewProviderResolver(oauth2.NewRegistry(), creds)
	generator := bundle.NewGenerator(db, filepath.Join(dir, "backups"))
	service := NewBackupService(db, generator, resolver, nil)

	return &serviceFixture{db: db, creds: creds, service: service}
}

func (f *serviceFixture) connectProvider(t *testing.T, kind entities.ProviderKind) {
	t.Helper()
	require.NoError(t, f.creds.Save(&entities.DecryptedCredential{
		AccountID:    1,
		Provider:     kind,
		AccessToken:  "access",
		RefreshToken: "refresh",
	}))
}

func scheduleInput() ScheduleInput {
	return ScheduleInput{
		Enabled:   true,
		Frequency: "daily",
		Time:      "03:30",
		Timezone:  "Europe/Berlin",
		Provider:  "dropbox",
	}
}

func TestUpdateScheduleEnables(t *testing.T) {
	f := newServiceFixture(t)
	f.connectProvider(t, entities.ProviderKindDropbox)

	schedule, err := f.service.UpdateSchedule(1, scheduleInput())
	require.NoError(t, err)

	assert.True(t, schedule.Enabled)
	assert.Equal(t, entities.BackupFrequencyDaily, schedule.Frequency)
	assert.Equal(t, "03:30", schedule.Time)
	assert.Equal(t, "Europe/Berlin", schedule.Timezone)
	assert.Equal(t, entities.ProviderKindDropbox, schedule.Provider)
	assert.Equal(t, 0, schedule.FailureCount)
	require.NotNil(t, schedule.NextBackup)
	assert.True(t, schedule.NextBackup.After(time.Now()))

	// The update survives a reload.
	reloaded, err := f.service.GetSchedule(1)
	require.NoError(t, err)
	assert.True(t, reloaded.Enabled)
}

func TestUpdateScheduleRequiresConnectedProvider(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.UpdateSchedule(1, scheduleInput())
	var notConnected *ProviderNotConnectedError
	require.ErrorAs(t, err, &notConnected)
	assert.Equal(t, "dropbox", notConnected.Provider)
}

func TestUpdateScheduleDisableClearsNextRun(t *testing.T) {
	f := newServiceFixture(t)
	f.connectProvider(t, entities.ProviderKindDropbox)

	_, err := f.service.UpdateSchedule(1, scheduleInput())
	require.NoError(t, err)

	input := scheduleInput()
	input.Enabled = false
	schedule, err := f.service.UpdateSchedule(1, input)
	require.NoError(t, err)

	assert.False(t, schedule.Enabled)
	assert.Nil(t, schedule.NextBackup)
}

func TestUpdateScheduleValidation(t *testing.T) {
	f := newServiceFixture(t)
	f.connectProvider(t, entities.ProviderKindDropbox)

	tests := []struct {
		name   string
		mutate func(*ScheduleInput)
	}{
		{"unknown frequency", func(in *ScheduleInput) { in.Frequency = "fortnightly" }},
		{"unknown provider", func(in *ScheduleInput) { in.Provider = "icloud" }},
		{"bad time", func(in *ScheduleInput) { in.Time = "25:00" }},
		{"bad timezone", func(in *ScheduleInput) { in.Timezone = "Mars/Olympus_Mons" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := scheduleInput()
			tt.mutate(&input)
			_, err := f.service.UpdateSchedule(1, input)
			require.Error(t, err)
		})
	}
}

func TestGetScheduleCreatesDisabledDefault(t *testing.T) {
	f := newServiceFixture(t)

	schedule, err := f.service.GetSchedule(1)
	require.NoError(t, err)
	assert.False(t, schedule.Enabled)
	assert.Equal(t, entities.BackupFrequencyWeekly, schedule.Frequency)
	assert.Equal(t, "03:00", schedule.Time)
	assert.Nil(t, schedule.NextBackup)
}

func TestImportBundleReplaceRequiresPassword(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.ImportBundle(1, "irrelevant.zip", importer.ModeReplace, "")
	var secErr *SecurityError
	require.ErrorAs(t, err, &secErr)
	assert.Contains(t, secErr.Reason, "required")

	_, err = f.service.ImportBundle(1, "irrelevant.zip", importer.ModeReplace, "wrong-passphrase")
	require.ErrorAs(t, err, &secErr)
	assert.Contains(t, secErr.Reason, "match")
}

func TestExportThenImportRoundTrip(t *testing.T) {
	f := newServiceFixture(t)

	recipe := entities.Recipe{
		AccountID:    1,
		Title:        "Minestrone",
		Ingredients:  []entities.Ingredient{{Name: "Beans", Amount: 200, Unit: "g"}},
		Instructions: []entities.Instruction{{Text: "Simmer everything."}},
	}
	require.NoError(t, f.db.Session().Create(&recipe).Error)

	archivePath, size, err := f.service.ExportBundle(1)
	require.NoError(t, err)
	assert.Positive(t, size)

	preview, err := f.service.PreviewBundle(archivePath)
	require.NoError(t, err)
	assert.Equal(t, bundle.CurrentVersion, preview.Version)
	assert.Equal(t, 1, preview.Recipes)

	stats, err := f.service.ImportBundle(1, archivePath, importer.ModeReplace, testPassword)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalImported)

	recipes, err := f.db.RecipesForAccount(1)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "Minestrone", recipes[0].Title)
}
