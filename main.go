// Public domain.

package main

import "github.com/legacysurvey/forcedphot/internal/fpprog"

func main() {
	fpprog.Main()
}
