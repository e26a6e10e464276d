// Package appfs holds the files embedded into the binaries: SQL migrations, email templates & the common passwords list.
package appfs

import "embed"

//go:embed migrations/*.sql assets/templates/email/* assets/common-passwords.txt.gz
var FS embed.FS
