package service

import "github.com/forgo/exitlane/api/internal/model"

// pipelineStages are the deal progress steps in order
var pipelineStages = []struct {
	key   string
	label string
}{
	{"offer_placed", "Offer Placed"},
	{"funds_in_escrow", "Funds in Escrow"},
	{"asset_transfer", "Asset Transfer"},
	{"buyer_verification", "Buyer Verification"},
	{"completed", "Completed"},
}

// stageIndex maps an escrow status to the current stage. Statuses not in the
// map halt the pipeline.
var stageIndex = map[model.EscrowStatus]int{
	model.EscrowPendingPayment:       0,
	model.EscrowRequiresAction:       0,
	model.EscrowFundsHeld:            1,
	model.EscrowTransferInProgress:   2,
	model.EscrowAwaitingConfirmation: 3,
	model.EscrowCompleted:            4,
}

// CreatePipelineStages renders the deal progress bar for an escrow status.
// A completed deal has every stage complete; cancelled, refunded, failed and
// disputed deals are halted with index -1 and every stage upcoming.
func CreatePipelineStages(status model.EscrowStatus) *model.Pipeline {
	current, ok := stageIndex[status]
	if !ok {
		current = -1
	}

	stages := make([]model.PipelineStage, len(pipelineStages))
	for i, s := range pipelineStages {
		state := model.StageUpcoming
		switch {
		case current < 0:
		case status == model.EscrowCompleted || i < current:
			state = model.StageComplete
		case i == current:
			state = model.StageCurrent
		}
		stages[i] = model.PipelineStage{Index: i, Key: s.key, Label: s.label, State: state}
	}

	return &model.Pipeline{
		Status:       status,
		CurrentIndex: current,
		Halted:       current < 0,
		Stages:       stages,
	}
}
