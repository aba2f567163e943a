// Package answer assembles retrieval candidates into budgeted context
// bundles and orchestrates grounded answer generation, including multi-step
// plans for compound questions.
package answer
