package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: DriverMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpenMemoryDatabasesAreIsolated(t *testing.T) {
	first := openTestDB(t)
	second := openTestDB(t)

	require.NoError(t, AutoMigrate(first))
	require.True(t, first.Migrator().HasTable(&models.PortalInvite{}))
	require.False(t, second.Migrator().HasTable(&models.PortalInvite{}))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestAutoMigrateCreatesPortalTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	for _, model := range PortalModels() {
		require.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestSeedDataIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	seed := SeedOptions{DemoOrganizationID: "3b0e9f6c-0d51-4a57-8d2c-9b61a3a3c001"}

	require.NoError(t, AutoMigrateAndSeed(db, seed))
	require.NoError(t, SeedData(db, seed))

	var project models.Property
	require.NoError(t, db.First(&project, "id = ?", DemoProjectID).Error)
	require.Equal(t, models.RecordTypeProject, project.RecordType)
	require.True(t, project.PortalPublished())

	var blocks int64
	require.NoError(t, db.Model(&models.ProjectContentBlock{}).Count(&blocks).Error)
	require.EqualValues(t, 2, blocks)
}

func TestSeedDataSkipsWithoutOrganization(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db, SeedOptions{}))

	var count int64
	require.NoError(t, db.Model(&models.Property{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "portal", Name: "portal"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=portal dbname=portal sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User: "user", Name: "db", Host: "db.example.com", Port: 6543, Password: "pass",
		Options: map[string]string{"sslmode": "require", "search_path": "crm"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.example.com port=6543 user=user dbname=db password=pass search_path=crm sslmode=require", dsn)

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "user", Password: "secret", Name: "db", Host: "db.example.com", Port: 3307})
	require.NoError(t, err)
	require.Contains(t, dsn, "user:secret@tcp(db.example.com:3307)/db?")
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "charset=utf8mb4")

	_, err = buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestDescribeHidesCredentials(t *testing.T) {
	desc := Describe(Config{Driver: "postgres", Host: "db", Port: 5432, Name: "portal", Password: "hunter2"})
	require.Equal(t, "postgres://db:5432/portal", desc)
	require.NotContains(t, desc, "hunter2")
}
