package service

import (
	"strings"
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	signals := RequestSignals{
		ClientAddr:     "203.0.113.7",
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		AcceptLanguage: "ru-RU,ru;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
		Referrer:       "https://cardpress.example/catalog",
	}

	first := signals.Fingerprint()
	second := signals.Fingerprint()

	if first != second {
		t.Errorf("отпечаток должен быть детерминированным: %q != %q", first, second)
	}
}

func TestFingerprint_Format(t *testing.T) {
	fp := RequestSignals{ClientAddr: "203.0.113.7"}.Fingerprint()

	if len(fp) != 64 {
		t.Errorf("ожидалась длина 64, получена %d", len(fp))
	}
	if fp != strings.ToLower(fp) {
		t.Error("отпечаток должен быть в нижнем регистре")
	}
	for _, c := range fp {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("недопустимый символ %q в отпечатке", c)
		}
	}
}

func TestFingerprint_SignalSensitivity(t *testing.T) {
	base := RequestSignals{
		ClientAddr:     "203.0.113.7",
		UserAgent:      "Mozilla/5.0",
		AcceptLanguage: "ru-RU",
		AcceptEncoding: "gzip",
		Referrer:       "https://cardpress.example/",
	}

	variants := map[string]RequestSignals{
		"другой адрес":    {ClientAddr: "203.0.113.8", UserAgent: base.UserAgent, AcceptLanguage: base.AcceptLanguage, AcceptEncoding: base.AcceptEncoding, Referrer: base.Referrer},
		"другой браузер":  {ClientAddr: base.ClientAddr, UserAgent: "curl/8.0", AcceptLanguage: base.AcceptLanguage, AcceptEncoding: base.AcceptEncoding, Referrer: base.Referrer},
		"другой язык":     {ClientAddr: base.ClientAddr, UserAgent: base.UserAgent, AcceptLanguage: "en-US", AcceptEncoding: base.AcceptEncoding, Referrer: base.Referrer},
		"другая кодировка": {ClientAddr: base.ClientAddr, UserAgent: base.UserAgent, AcceptLanguage: base.AcceptLanguage, AcceptEncoding: "br", Referrer: base.Referrer},
		"другой referrer": {ClientAddr: base.ClientAddr, UserAgent: base.UserAgent, AcceptLanguage: base.AcceptLanguage, AcceptEncoding: base.AcceptEncoding, Referrer: "https://other.example/"},
	}

	baseFp := base.Fingerprint()
	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			if v.Fingerprint() == baseFp {
				t.Error("изменение сигнала должно менять отпечаток")
			}
		})
	}
}

func TestFingerprint_EmptySignals(t *testing.T) {
	// Полностью пустые сигналы — валидный вход: отпечаток от "||||".
	fp := RequestSignals{}.Fingerprint()

	if len(fp) != 64 {
		t.Errorf("ожидалась длина 64, получена %d", len(fp))
	}

	// Пустые сигналы всегда дают один и тот же отпечаток.
	if fp != (RequestSignals{}).Fingerprint() {
		t.Error("пустые сигналы должны давать стабильный отпечаток")
	}
}

func TestFingerprint_DelimiterPreventsMixups(t *testing.T) {
	// Разделитель не даёт склеиться соседним сигналам.
	a := RequestSignals{ClientAddr: "ab", UserAgent: "c"}
	b := RequestSignals{ClientAddr: "a", UserAgent: "bc"}

	if a.Fingerprint() == b.Fingerprint() {
		t.Error("перенос границы между сигналами должен менять отпечаток")
	}
}
