package main

import (
	"os"

	"github.com/Fabbi/autoshift/cmd/autoshift/cmd"
	"github.com/Fabbi/autoshift/lib/serviceutil"
	"github.com/Fabbi/autoshift/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "autoshift")
	if err == nil {
		defer tel.Shutdown(ctx)
	} else if !os.IsNotExist(err) {
		serviceutil.Fatal("failed to initialize telemetry", err)
	}

	cmd.ExecuteContext(ctx)
}
