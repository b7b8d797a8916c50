package validation

import "testing"

func TestNormalizeCNPJ(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"formatted", "06.210.435/0001-47", "06210435000147"},
		{"already normalized", "06210435000147", "06210435000147"},
		{"spaces and letters", " 06 210 435 abc 0001 47 ", "06210435000147"},
		{"empty", "", ""},
		{"only punctuation", "./-", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCNPJ(tt.raw); got != tt.want {
				t.Errorf("NormalizeCNPJ(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeCNPJIdempotent(t *testing.T) {
	raw := "06.210.435/0001-47"
	once := NormalizeCNPJ(raw)
	if twice := NormalizeCNPJ(once); twice != once {
		t.Errorf("normalization not idempotent: %q != %q", twice, once)
	}
}

func TestNormalizeMachine(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"PDV-01", "pdv-01"},
		{"pdv-01", "pdv-01"},
		{"  Caixa02  ", "caixa02"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeMachine(tt.raw); got != tt.want {
			t.Errorf("NormalizeMachine(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeMachineIdempotent(t *testing.T) {
	once := NormalizeMachine("PDV-01")
	if twice := NormalizeMachine(once); twice != once {
		t.Errorf("normalization not idempotent: %q != %q", twice, once)
	}
}

func TestValidCNPJ(t *testing.T) {
	if !ValidCNPJ("06210435000147") {
		t.Error("expected 14-digit CNPJ to be valid")
	}
	if ValidCNPJ("123") {
		t.Error("expected short CNPJ to be invalid")
	}
	if ValidCNPJ("") {
		t.Error("expected empty CNPJ to be invalid")
	}
	if ValidCNPJ("062104350001478") {
		t.Error("expected 15-digit CNPJ to be invalid")
	}
}
