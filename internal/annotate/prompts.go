package annotate

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to write a structured nursing note.
const SystemPrompt = `Tu es un assistant de documentation pour infirmières et infirmiers indépendants en Suisse.
À partir de la transcription brute d'une dictée faite après une visite à domicile, tu rédiges une annotation clinique :
- En français, dans un registre professionnel et concis, à la troisième personne
- En suivant exactement la structure demandée (titres et ordre des rubriques)
- Sans inventer de données : une information absente de la dictée n'apparaît pas, ou est notée "non renseigné"
- En conservant les valeurs chiffrées (tension, glycémie, température, poids, douleur EVA) telles que dictées
- En retirant les hésitations et répétitions de l'oral
- En t'inspirant du style des annotations précédentes lorsqu'elles sont fournies, sans en recopier le contenu
Réponds uniquement avec le texte de l'annotation, sans préambule.`

// DefaultTemplate is used when the nurse has not configured one.
const DefaultTemplate = `Motif de la visite:
Soins effectués:
Observations:
Constantes:
Évaluation:
Plan / suite de prise en charge:`

func userMessage(req Request) string {
	var b strings.Builder

	b.WriteString("## Patient\n")
	p := req.Patient
	if p.Name != "" {
		fmt.Fprintf(&b, "Nom: %s\n", p.Name)
	}
	if p.Age > 0 {
		fmt.Fprintf(&b, "Âge: %d ans\n", p.Age)
	}
	if len(p.Pathologies) > 0 {
		fmt.Fprintf(&b, "Pathologies: %s\n", strings.Join(p.Pathologies, ", "))
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Remarques: %s\n", p.Notes)
	}

	b.WriteString("\n## Visite\n")
	fmt.Fprintf(&b, "Date: %s\nHeure: %s\n", req.Visit.Date, req.Visit.Time)
	if req.Visit.DurationMinutes > 0 {
		fmt.Fprintf(&b, "Durée: %d minutes\n", req.Visit.DurationMinutes)
	}

	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = DefaultTemplate
	}
	b.WriteString("\n## Structure demandée\n")
	b.WriteString(template)
	b.WriteString("\n")

	if len(req.Examples) > 0 {
		b.WriteString("\n## Annotations précédentes de ce patient\n")
		for i, ex := range req.Examples {
			fmt.Fprintf(&b, "### Exemple %d\n%s\n", i+1, strings.TrimSpace(ex))
		}
	}

	b.WriteString("\n## Transcription\n")
	b.WriteString(strings.TrimSpace(req.Transcript))
	b.WriteString("\n")

	return b.String()
}
