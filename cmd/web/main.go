// @title           MMH API
// @version         1.0
// @description     Media Market Hub: marketplace connecting media owners with advertising agencies.
// @contact.name    MMH support
// @contact.email   support@mmh.local
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

package main

import (
	_ "mmh_backend/docs"
	"mmh_backend/internal/app"
)

func main() {
	app.Run()
}
