// Package menu maps an inbound message to the clinic's scripted reply.
//
// The router is stateless: the reply depends only on the current message.
// A user who sends a pain or duration id without having been shown those
// buttons still gets the matching step.
package menu

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/menubot/internal/whatsapp"
)

// ReplyKind tells the sender which message type to use.
type ReplyKind int

const (
	ReplyText ReplyKind = iota
	ReplyButtons
)

// Reply is the single action produced for one inbound message.
type Reply struct {
	Kind    ReplyKind
	Body    string
	Buttons []whatsapp.Button
}

// Step names the menu entry a reply belongs to, mostly for logs.
type Step string

const (
	StepGreeting    Step = "greeting"
	StepAppointment Step = "appointment"
	StepPain        Step = "pain"
	StepDuration    Step = "duration"
	StepUrgent      Step = "urgent"
	StepPricing     Step = "pricing"
	StepLocation    Step = "location"
	StepFallback    Step = "fallback"
)

// Button ids sent with the pain and duration questions. They come back as
// interactive reply ids.
const (
	PainMild     = "pain_leve"
	PainModerate = "pain_moderado"
	PainSevere   = "pain_fuerte"

	DurationToday = "dur_hoy"
	DurationDays  = "dur_2_3"
	DurationWeek  = "dur_semana"
)

// Business details used when Options leaves a field empty.
const (
	DefaultClinicName = "Clínica Dental Viridiana Segura"
	DefaultAddress    = "[tu dirección aquí]"
	DefaultHours      = "Lun-Sáb 9am-7pm"
)

// Options customizes the business details in the texts. Empty fields take
// the defaults above.
type Options struct {
	ClinicName string
	Address    string
	Hours      string
}

// Router holds the fixed keyword table. It is safe for concurrent use.
type Router struct {
	table    map[string]Step
	replies  map[Step]Reply
	fallback Reply
}

func (o Options) withDefaults() Options {
	if o.ClinicName == "" {
		o.ClinicName = DefaultClinicName
	}
	if o.Address == "" {
		o.Address = DefaultAddress
	}
	if o.Hours == "" {
		o.Hours = DefaultHours
	}
	return o
}

// New builds the routing table.
func New(opts Options) *Router {
	opts = opts.withDefaults()
	replies := map[Step]Reply{
		StepGreeting: {
			Kind: ReplyText,
			Body: fmt.Sprintf("Hola 👋\n"+
				"Gracias por contactar a *%s* 🦷\n\n"+
				"Puedo ayudarte con:\n"+
				"1️⃣ Agendar una cita\n"+
				"2️⃣ Atención por dolor o urgencia\n"+
				"3️⃣ Información de precios\n"+
				"4️⃣ Ubicación y horarios\n\n"+
				"Responde con el número 🙂", opts.ClinicName),
		},
		StepAppointment: {
			Kind: ReplyText,
			Body: "Perfecto ✅ ¿Qué día y hora te gustaría para tu cita? También dime el tratamiento.",
		},
		StepPain: {
			Kind: ReplyButtons,
			Body: "Lamento la molestia 😥 ¿Qué tan fuerte es?",
			Buttons: []whatsapp.Button{
				{ID: PainMild, Title: "Leve"},
				{ID: PainModerate, Title: "Moderado"},
				{ID: PainSevere, Title: "Fuerte"},
			},
		},
		StepDuration: {
			Kind: ReplyButtons,
			Body: "¿Desde cuándo tienes el dolor?",
			Buttons: []whatsapp.Button{
				{ID: DurationToday, Title: "Hoy"},
				{ID: DurationDays, Title: "2-3 días"},
				{ID: DurationWeek, Title: "1 semana +"},
			},
		},
		StepUrgent: {
			Kind: ReplyText,
			Body: "Gracias. Te recomiendo una valoración lo antes posible. ¿Quieres que te agendemos hoy?",
		},
		StepPricing: {
			Kind: ReplyText,
			Body: "Con gusto 💬 ¿Qué tratamiento te interesa? (limpieza, resina, blanqueamiento, ortodoncia, etc.)",
		},
		StepLocation: {
			Kind: ReplyText,
			Body: fmt.Sprintf("Estamos en %s. Horario: %s. ¿Quieres ubicación en mapa?", opts.Address, opts.Hours),
		},
	}

	table := map[string]Step{
		"hola":        StepGreeting,
		"menu":        StepGreeting,
		"1":           StepAppointment,
		"2":           StepPain,
		PainMild:      StepDuration,
		PainModerate:  StepDuration,
		PainSevere:    StepDuration,
		DurationToday: StepUrgent,
		DurationDays:  StepUrgent,
		DurationWeek:  StepUrgent,
		"3":           StepPricing,
		"4":           StepLocation,
	}

	return &Router{
		table:   table,
		replies: replies,
		fallback: Reply{
			Kind: ReplyText,
			Body: "Escribe *menu* para ver opciones 😊",
		},
	}
}

// Normalize trims surrounding whitespace and lowercases s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Route returns the reply for input. Unknown input, including "", gets the
// fallback asking the user to type "menu".
func (r *Router) Route(input string) Reply {
	reply, _ := r.Resolve(input)
	return reply
}

// Resolve is Route plus the step that matched.
func (r *Router) Resolve(input string) (Reply, Step) {
	step, ok := r.table[Normalize(input)]
	if !ok {
		return r.fallback, StepFallback
	}
	reply := r.replies[step]
	// Callers get their own button slice; the table is never mutated.
	reply.Buttons = append([]whatsapp.Button(nil), reply.Buttons...)
	return reply, step
}
