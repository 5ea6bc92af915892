package models

import (
	"encoding/json"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestJSONValueScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{"bytes", []byte(`{"total":42}`), `{"total":42}`},
		{"text", `"Dana"`, `"Dana"`},
		{"integer", int64(42), `42`},
		{"real", 120.5, `120.5`},
		{"bool", true, `true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j JSONValue
			require.NoError(t, j.Scan(tt.src))
			assert.Equal(t, tt.want, j.String())
		})
	}

	var j JSONValue
	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)
	assert.Error(t, j.Scan("needs ramp"))
	assert.Error(t, j.Scan(struct{}{}))
}

func TestJSONValueMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		V JSONValue `json:"v"`
		E JSONValue `json:"e"`
	}{V: JSONValue(`[1,2]`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":[1,2],"e":null}`, string(out))

	var in struct {
		V JSONValue `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v": 7}`), &in))
	assert.Equal(t, "7", in.V.String())
}

func TestJSONValueRoundTripsScalarsOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&Page{}, &Section{}, &Field{}))

	page := Page{PageName: "survey", Sections: []Section{{SectionName: "site"}}}
	require.NoError(t, db.Create(&page).Error)
	sectionID := page.Sections[0].ID

	values := []string{`0`, `42`, `120.5`, `"2025-03-10"`, `true`, `{"a":1}`, `[]`}
	for _, v := range values {
		f := Field{SectionID: sectionID, FieldName: "f" + v, FieldValue: JSONValue(v)}
		require.NoError(t, db.Create(&f).Error)

		var got Field
		require.NoError(t, db.First(&got, "id = ?", f.ID).Error)
		assert.Equal(t, v, got.FieldValue.String())
	}
}
