package constants

// CaseStatus is the canonical lifecycle status stored on a case row.
type CaseStatus string

// Stable values (store these exact strings in DB).
const (
	StatusReceived           CaseStatus = "recebido"             // intake finished, waiting for a run
	StatusProcessing         CaseStatus = "processando"          // a run holds the case
	StatusProcessed          CaseStatus = "processado"           // petition draft stored
	StatusFailed             CaseStatus = "erro"                 // last run failed
	StatusDocumentsDelivered CaseStatus = "documentos_entregues" // complementary documents arrived after intake
)

var allStatuses = []CaseStatus{
	StatusReceived,
	StatusProcessing,
	StatusProcessed,
	StatusFailed,
	StatusDocumentsDelivered,
}

// Statuses returns every known status in lifecycle order.
func Statuses() []CaseStatus {
	out := make([]CaseStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is a known status.
func (s CaseStatus) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Runnable reports whether a pipeline run may claim a case in this status.
func (s CaseStatus) Runnable() bool {
	return s != StatusProcessing && s != StatusProcessed
}

// public phrases shown to citizens; erro deliberately reads like processando.
var publicPhrases = map[CaseStatus]string{
	StatusReceived:           "Recebido, aguardando processamento",
	StatusProcessing:         "Em processamento",
	StatusProcessed:          "Enviado para análise da Defensoria",
	StatusFailed:             "Em processamento",
	StatusDocumentsDelivered: "Documentos complementares recebidos, em análise",
}

const publicFallback = "Em análise"

// PublicStatus maps an internal status to the phrase shown on the public status page.
func PublicStatus(s CaseStatus) string {
	if p, ok := publicPhrases[s]; ok {
		return p
	}
	return publicFallback
}
