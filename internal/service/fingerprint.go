// fingerprint.go — вычисление отпечатка контекста зрителя.
//
// Отпечаток — SHA-256 от пяти сигналов запроса, склеенных фиксированным
// разделителем в фиксированном порядке. Хэш односторонний: сырые сигналы
// не сохраняются как идентификатор, в леджер попадает только дайджест.
// Комбинация нескольких слабых сигналов затрудняет склейку двух разных
// визитов в «одного зрителя», не храня напрямую идентифицирующих данных.
package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintDelimiter — разделитель сигналов в конкатенации.
const fingerprintDelimiter = "|"

// RequestSignals — наблюдаемые сигналы одного запроса на просмотр.
// Отсутствующий сигнал — пустая строка; ошибок при выводе отпечатка не бывает.
type RequestSignals struct {
	// ClientAddr — первый адрес из цепочки X-Forwarded-For,
	// иначе адрес прямого подключения, иначе "unknown"
	ClientAddr string
	// UserAgent — заголовок User-Agent
	UserAgent string
	// AcceptLanguage — заголовок Accept-Language
	AcceptLanguage string
	// AcceptEncoding — заголовок Accept-Encoding
	AcceptEncoding string
	// Referrer — заголовок Referer
	Referrer string
}

// Fingerprint возвращает SHA-256 дайджест сигналов, hex в нижнем регистре.
// Детерминирован: одинаковые сигналы всегда дают одинаковый дайджест.
func (s RequestSignals) Fingerprint() string {
	payload := strings.Join([]string{
		s.ClientAddr,
		s.UserAgent,
		s.AcceptLanguage,
		s.AcceptEncoding,
		s.Referrer,
	}, fingerprintDelimiter)

	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])
}
