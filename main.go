/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/killallgit/player-api/cmd"

// @title           Marker Service API
// @version         1.0.0
// @description     Marker CRUD, bulk shift and purge reconciliation over a foreign media library database
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /api/v1/markers
// @schemes         http
func main() {
	cmd.Execute()
}
