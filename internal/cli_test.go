package internal

import "testing"

func TestValidateModeRequiresExactlyOneOfHostOrJoin(t *testing.T) {
	defer func(h bool, j string) { Host, JoinAddr = h, j }(Host, JoinAddr)

	Host, JoinAddr = false, ""
	if err := ValidateMode(); err == nil {
		t.Fatal("expected an error when neither --host nor --join is given")
	}

	Host, JoinAddr = true, "203.0.113.5:9000"
	if err := ValidateMode(); err == nil {
		t.Fatal("expected an error when both --host and --join are given")
	}

	Host, JoinAddr = true, ""
	if err := ValidateMode(); err != nil {
		t.Fatalf("unexpected error for --host alone: %v", err)
	}

	Host, JoinAddr = false, "203.0.113.5:9000"
	if err := ValidateMode(); err != nil {
		t.Fatalf("unexpected error for --join alone: %v", err)
	}
}
