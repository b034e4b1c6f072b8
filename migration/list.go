package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/Skyrin/go-migrate/e"
)

const (
	ECode000201 = e.Code0002 + "01"
	ECode000202 = e.Code0002 + "02"
	ECode000203 = e.Code0002 + "03"
	ECode000204 = e.Code0002 + "04"
	ECode000205 = e.Code0002 + "05"
	ECode000206 = e.Code0002 + "06"
	ECode000207 = e.Code0002 + "07"
)

// File a versioned migration file
type File struct {
	Name    string
	Version int
	SQL     []byte
}

// List versioned migration files (0001_create_users.sql, 0002_...) read from
// a file system, typically an embed.FS or a directory
type List struct {
	Code string
	path string
	fsys fs.FS
}

// NewList initialize a new list of the files under path in fsys
//
//	//go:embed db/migrations/*.sql
//	var migrations embed.FS
//	l := migration.NewList("nexio", "db/migrations", migrations)
func NewList(code, path string, fsys fs.FS) (l *List) {
	return &List{
		Code: code,
		path: path,
		fsys: fsys,
	}
}

// NewDirList initialize a new list of the files in a directory
func NewDirList(code, dir string) (l *List) {
	return NewList(code, ".", os.DirFS(dir))
}

// GetVersionFromName parse the name for the version. The name is expected to have
// the version first as a 0 padded number and then an underscore. The rest of the
// name can be anything.
func (f *File) GetVersionFromName() (v int, err error) {
	prefix, _, ok := strings.Cut(f.Name, "_")
	if !ok {
		return 0, e.WWM(nil, ECode000201, e.MsgMigrationFileNameInvalid,
			fmt.Sprintf("name: %s", f.Name))
	}

	v, err = strconv.Atoi(prefix)
	if err != nil {
		return 0, e.WWM(err, ECode000202, e.MsgMigrationFileNameVersionInvalid,
			fmt.Sprintf("name: %s", f.Name))
	}

	if v <= 0 {
		return 0, e.WWM(nil, ECode000203, e.MsgMigrationFileNameVersionInvalid,
			fmt.Sprintf("name: %s", f.Name))
	}

	return v, nil
}

// GetFiles returns the list's .sql files in version order. Versions must be
// unique.
func (l *List) GetFiles() (fList []*File, err error) {
	dirList, err := fs.ReadDir(l.fsys, l.path)
	if err != nil {
		return nil, e.W(err, ECode000204, fmt.Sprintf("path: %s", l.path))
	}
	fList = make([]*File, 0, len(dirList))

	seen := make(map[int]string, len(dirList))
	for _, file := range dirList {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		f := &File{
			Name: file.Name(),
		}

		f.Version, err = f.GetVersionFromName()
		if err != nil {
			return nil, e.W(err, ECode000205)
		}

		if other, ok := seen[f.Version]; ok {
			return nil, e.WWM(nil, ECode000206, e.MsgMigrationFileNameVersionInvalid,
				fmt.Sprintf("%s and %s share version %d", other, f.Name, f.Version))
		}
		seen[f.Version] = f.Name

		f.SQL, err = fs.ReadFile(l.fsys, path.Join(l.path, file.Name()))
		if err != nil {
			return nil, e.W(err, ECode000207)
		}

		fList = append(fList, f)
	}

	sort.Slice(fList, func(i, j int) bool {
		return fList[i].Version < fList[j].Version
	})

	return fList, nil
}
