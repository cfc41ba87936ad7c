package tracking

import "testing"

func TestChecksums(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) bool
		input string
		want  bool
	}{
		{"gs1 sscc", gs1Mod10, "106141410000000019", true},
		{"gs1 sscc off by one", gs1Mod10, "106141410000000010", false},
		{"gs1 impb", gs1Mod10, "9400111899223100000000", true},
		{"gs1 too short", gs1Mod10, "7", false},
		{"ups", upsMod10, "1Z999AA10123456784", true},
		{"ups with letters", upsMod10, "1Z410E7W0392751591", true},
		{"ups wrong check", upsMod10, "1Z999AA10123456780", false},
		{"ups wrong length", upsMod10, "1Z999AA1012345678", false},
		{"fedex express", fedexMod11, "986578788855", true},
		{"fedex express second", fedexMod11, "477179081230", true},
		{"fedex express wrong", fedexMod11, "477179081231", false},
		{"dhl", dhlMod7, "3123456781", true},
		{"dhl wrong", dhlMod7, "3123456782", false},
		{"s10", s10Mod11, "EA123456785US", true},
		{"s10 wrong", s10Mod11, "EA123456784US", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input); got != tt.want {
				t.Errorf("%s(%q) = %v, want %v", tt.name, tt.input, got, tt.want)
			}
		})
	}
}
