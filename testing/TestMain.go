// Package testing is blank-imported by package tests so no test ever talks
// to real brokers or collectors.
package testing

import (
	"os"
	stdtesting "testing"
)

var isolatedEnv = map[string]string{
	"POS_TEST_MODE":               "1",
	"KAFKA_BROKERS":               "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
}

func isolate() {
	for key, value := range isolatedEnv {
		_ = os.Setenv(key, value)
	}
}

func init() {
	isolate()
}

func TestMain(m *stdtesting.M) {
	isolate()
	os.Exit(m.Run())
}
