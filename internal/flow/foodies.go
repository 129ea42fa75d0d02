package flow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/ArcanaCorp/RIZZO/internal/store"
)

// FoodiesDescription describes the restaurant flow for the registry.
const FoodiesDescription = "Flujo para restaurantes"

// StateAwaitingPeople marks a chat waiting for the party size of a
// reservation.
const StateAwaitingPeople = "awaiting_people"

const (
	foodiesGreeting = "👋 ¡Bienvenido al restaurante!\n¿Quieres ver?\n1️⃣ Carta\n2️⃣ Promos\n3️⃣ Reservas\nEscribe 'ayuda' para opciones adicionales."
	foodiesCard     = "🍽️ Aquí tienes la carta:\nhttps://tusitio.com/carta"
	foodiesPromos   = "🔥 Promociones de hoy:\n- 2x1 en pizzas\n- 20% en pastas\n¿Te interesa alguna? Responde con el número o escribe 'reservas' para reservar."
	foodiesAskSize  = "Perfecto, ¿para cuántas personas será la reserva?"
	foodiesReprompt = "Por favor indica el número de personas (ej: 3)."
	foodiesHelp     = "Comandos disponibles:\n- 'hola' - Saludo y menú\n- '1' o 'carta' - Ver carta\n- '2' o 'promos' - Promociones\n- '3' o 'reservas' - Iniciar reserva"
	foodiesFallback = "No entendí tu mensaje. Escribe 'ayuda' para ver las opciones disponibles."
)

// Foodies returns the restaurant flow: menu, promos and a two-turn
// reservation dialog that collects the party size.
func Foodies(repo store.Repository) Handler {
	return func(ctx context.Context, text string, msg Context, tenantID string) (string, error) {
		t := normalize(text)
		chatID := msg.ChatID()

		state, chats, err := loadChatState(ctx, repo, tenantID, chatID)
		if err != nil {
			return "", err
		}

		// Mid-reservation: the only accepted input is a bare number.
		if state.State == StateAwaitingPeople {
			if !allDigits(t) {
				return foodiesReprompt, nil
			}
			people, err := strconv.Atoi(t)
			if err != nil {
				return foodiesReprompt, nil
			}
			if err := saveChatState(ctx, repo, tenantID, chatID, chats, domain.ChatState{}); err != nil {
				return "", err
			}
			plural := ""
			if people > 1 {
				plural = "s"
			}
			return fmt.Sprintf("✅ Reserva registrada para %d persona%s. Pronto confirmaremos.", people, plural), nil
		}

		switch {
		case containsAny(t, "hola", "buenas", "buenos"):
			return foodiesGreeting, nil
		case t == "1" || containsAny(t, "carta", "menu"):
			return foodiesCard, nil
		case t == "2" || containsAny(t, "promo"):
			return foodiesPromos, nil
		case t == "3" || containsAny(t, "reserva"):
			if err := saveChatState(ctx, repo, tenantID, chatID, chats, domain.ChatState{State: StateAwaitingPeople}); err != nil {
				return "", err
			}
			return foodiesAskSize, nil
		case t == "ayuda" || t == "help" || t == "opciones":
			return foodiesHelp, nil
		default:
			return foodiesFallback, nil
		}
	}
}
