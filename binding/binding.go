package binding

import (
	"github.com/hhkbp2/esbench"
)

func AddBindings() {
	esbench.Databases["elasticsearch"] = func() esbench.DB {
		return NewElasticsearchDB()
	}
	esbench.Databases["es"] = esbench.Databases["elasticsearch"]
	esbench.Databases["mysql"] = func() esbench.DB {
		return NewMysqlDB()
	}
	esbench.Databases["sqlite"] = func() esbench.DB {
		return NewSqliteDB()
	}
}
