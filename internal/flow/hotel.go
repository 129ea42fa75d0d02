package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/ArcanaCorp/RIZZO/internal/store"
)

// HotelDescription describes the hotel flow for the registry.
const HotelDescription = "Flujo para hoteles"

// StateAwaitingDate marks a chat waiting for a reservation date.
const StateAwaitingDate = "awaiting_date"

const (
	hotelGreeting = "🏨 ¡Bienvenido al Hotel!\nOpciones:\n1️⃣ Habitaciones\n2️⃣ Precios\n3️⃣ Reservas\nEscribe 'ayuda' para más opciones."
	hotelRooms    = "🛏️ Habitaciones disponibles:\n- Simple\n- Doble\n- Suite"
	hotelPrices   = "💵 Precios por noche:\nSimple S/80\nDoble S/120\nSuite S/200"
	hotelAskDate  = "🗓️ Perfecto, ¿para qué fecha desea reservar? (DD/MM/YYYY o YYYY-MM-DD)"
	hotelReprompt = "Por favor indica la fecha en formato DD/MM/YYYY o YYYY-MM-DD."
	hotelHelp     = "Comandos:\n- '1' Habitaciones\n- '2' Precios\n- '3' Reservas\n- 'ayuda' para ver comandos"
	hotelFallback = "No entendí tu mensaje. Escribe 'ayuda' para ver las opciones disponibles."
)

var hotelDateLayouts = []string{"02/01/2006", "2006-01-02"}

// parseReservationDate accepts DD/MM/YYYY or YYYY-MM-DD.
func parseReservationDate(s string) (time.Time, bool) {
	for _, layout := range hotelDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Hotel returns the hotel flow: rooms, prices and a two-turn reservation
// dialog that collects the date.
func Hotel(repo store.Repository) Handler {
	return func(ctx context.Context, text string, msg Context, tenantID string) (string, error) {
		t := normalize(text)
		chatID := msg.ChatID()

		state, chats, err := loadChatState(ctx, repo, tenantID, chatID)
		if err != nil {
			return "", err
		}

		if state.State == StateAwaitingDate {
			if _, ok := parseReservationDate(t); !ok {
				return hotelReprompt, nil
			}
			if err := saveChatState(ctx, repo, tenantID, chatID, chats, domain.ChatState{}); err != nil {
				return "", err
			}
			return fmt.Sprintf("✅ Reserva registrada para la fecha %s. Te enviaremos confirmación.", t), nil
		}

		switch {
		case containsAny(t, "hola", "buenas"):
			return hotelGreeting, nil
		case t == "1" || containsAny(t, "habitac"):
			return hotelRooms, nil
		case t == "2" || containsAny(t, "precio"):
			return hotelPrices, nil
		case t == "3" || containsAny(t, "reserva"):
			if err := saveChatState(ctx, repo, tenantID, chatID, chats, domain.ChatState{State: StateAwaitingDate}); err != nil {
				return "", err
			}
			return hotelAskDate, nil
		case t == "ayuda" || t == "help":
			return hotelHelp, nil
		default:
			return hotelFallback, nil
		}
	}
}
