package flow

import "context"

// DefaultDescription describes the default flow for the registry.
const DefaultDescription = "Flujo por defecto"

// Default returns the stateless fallback flow: greeting, help and a fixed
// catch-all reply.
func Default() Handler {
	return func(_ context.Context, text string, _ Context, _ string) (string, error) {
		t := normalize(text)

		if containsAny(t, "hola", "buenas") {
			return "👋 Hola, soy RIZZO! ¿En qué puedo ayudarte? Escribe 'ayuda' para opciones.", nil
		}

		if t == "ayuda" || t == "help" {
			return "Comandos:\n- 'hola' - Saludo\n- Escribe tu pregunta y te ayudaré.", nil
		}

		return "No entendí tu mensaje. Escribe 'ayuda' para ver las opciones disponibles.", nil
	}
}
