package main

import (
	"testing"

	"github.com/helixhealth/helix-portal/internal/app"
	_ "github.com/helixhealth/helix-portal/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode")
	}
	main()
}
