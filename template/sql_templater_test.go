package template

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestExecuteSqlTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"query.sql": {Data: []byte("SELECT * FROM {{.TableName}} WHERE id = {{.ID}};\n")},
		"in.sql":    {Data: []byte("SELECT * FROM t WHERE ticker IN ({{placeholders .N}});")},
		"ddl.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS {{.Table}} ({{join .Columns \", \"}});")},
		"cols.sql":  {Data: []byte("SELECT {{quote .Columns}} FROM t;")},
	}

	tests := []struct {
		name       string
		path       string
		params     map[string]any
		want       string
		wantErr    bool
		errMessage string
	}{
		{
			name: "successful template execution",
			path: "query.sql",
			params: map[string]any{
				"TableName": "users",
				"ID":        123,
			},
			want:    "SELECT * FROM users WHERE id = 123;",
			wantErr: false,
		},
		{
			name:       "missing parameter",
			path:       "query.sql",
			params:     map[string]any{},
			wantErr:    true,
			errMessage: "failed to execute template",
		},
		{
			name:    "placeholders",
			path:    "in.sql",
			params:  map[string]any{"N": 3},
			want:    "SELECT * FROM t WHERE ticker IN (?, ?, ?);",
			wantErr: false,
		},
		{
			name:    "join",
			path:    "ddl.sql",
			params:  map[string]any{"Table": "t", "Columns": []string{"a INT", "b VARCHAR"}},
			want:    "CREATE TABLE IF NOT EXISTS t (a INT, b VARCHAR);",
			wantErr: false,
		},
		{
			name:    "quote",
			path:    "cols.sql",
			params:  map[string]any{"Columns": []string{"DATE", `we"ird`}},
			want:    `SELECT "DATE", "we""ird" FROM t;`,
			wantErr: false,
		},
		{
			name:       "missing file",
			path:       "nope.sql",
			params:     map[string]any{},
			wantErr:    true,
			errMessage: "failed to read template file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExecuteSqlTemplate(fsys, tt.path, tt.params)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMessage != "" {
					assert.Contains(t, err.Error(), tt.errMessage)
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("bad", "SELECT {{.Foo", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template bad")
}
