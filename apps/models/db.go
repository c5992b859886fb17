package models

import (
	"github.com/getevo/evo/v2/lib/db"
	"gorm.io/gorm"
)

// DB returns the shared gorm handle. Components that carry their own database
// reference (for transaction scoping and test injection) are wired with this
// at startup.
func DB() *gorm.DB {
	return db.Model(&Setting{}).Session(&gorm.Session{NewDB: true})
}
