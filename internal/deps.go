package internal

import (
	"bitwise74/smart-librarian/config"
	"bitwise74/smart-librarian/internal/rag"
	"bitwise74/smart-librarian/internal/service"
	"bitwise74/smart-librarian/internal/speech"
	"bitwise74/smart-librarian/pkg/security"

	"gorm.io/gorm"
)

// Deps holds everything request handlers need. Recommender and TTS are nil
// when their backends are not configured.
type Deps struct {
	Cfg         *config.Config
	DB          *gorm.DB
	Argon       *security.ArgonHash
	Tokens      *security.TokenIssuer
	Users       *service.UserStore
	Codes       *service.CodeEngine
	Auth        *service.AuthService
	Mail        *service.MailQueue
	Profile     *service.ProfileService
	Recommender *rag.Recommender
	TTS         *speech.Service
}
