package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/rosterd/internal/models"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rosterctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	paths := [][]string{{"migrate"}, {"import"}, {"cache", "clear"}, {"user", "add"}, {"user", "disable"}}

	for _, path := range paths {
		subCmd, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], subCmd.Name())
	}
}

func TestUserAddFlags(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"user", "add"})
	require.NoError(t, err)

	flag := addCmd.Flags().Lookup("password")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
}

// writeConfig points rosterctl at a file-backed SQLite database with a database-backed cache.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rosterd.db")
	config := "database:\n  driver: sqlite\n  path: " + dbPath + "\ncache:\n  backend: database\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o600))
	return dir, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func openDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestImportCommand(t *testing.T) {
	dir, dbPath := writeConfig(t)

	csvPath := filepath.Join(t.TempDir(), "students.csv")
	csv := "Фамилия,Имя,Факультет,Курс,Оценка\nIvanov,Ivan,Math,Algebra,90\nPetrov,Petr,Math,Algebra,oops\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o600))

	out, err := execute(t, "--config", dir, "import", csvPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported 1 students, skipped 1 rows")

	var students []models.Student
	require.NoError(t, openDB(t, dbPath).Find(&students).Error)
	require.Len(t, students, 1)
	assert.Equal(t, "Ivanov", students[0].Surname)
}

func TestImportCommandMissingFile(t *testing.T) {
	dir, _ := writeConfig(t)

	_, err := execute(t, "--config", dir, "import", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}

func TestUserAddAndDisable(t *testing.T) {
	dir, dbPath := writeConfig(t)

	out, err := execute(t, "--config", dir, "user", "add", "alice", "--password", "s3cret!")
	require.NoError(t, err, out)
	assert.Contains(t, out, "registered alice")

	_, err = execute(t, "--config", dir, "user", "add", "alice", "--password", "again")
	require.Error(t, err)

	_, err = execute(t, "--config", dir, "user", "add", "bob")
	require.Error(t, err)

	out, err = execute(t, "--config", dir, "user", "disable", "alice")
	require.NoError(t, err, out)

	var user models.User
	require.NoError(t, openDB(t, dbPath).Where("username = ?", "alice").First(&user).Error)
	assert.False(t, user.IsActive)
}

func TestCacheClearAndMigrate(t *testing.T) {
	dir, dbPath := writeConfig(t)

	out, err := execute(t, "--config", dir, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "schema up to date")

	db := openDB(t, dbPath)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "students:all", Value: []byte("[]")}).Error)

	out, err = execute(t, "--config", dir, "cache", "clear")
	require.NoError(t, err, out)
	assert.Contains(t, out, "cache cleared")

	var count int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}
