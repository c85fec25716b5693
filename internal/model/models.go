package model

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&LeadStatus{},
		&LeadSource{},
		&DealStage{},
		&User{},
		&SignupRequest{},
		&Customer{},
		&Merchant{},
		&MerchantUser{},
		&MerchantUserMapping{},
		&Lead{},
		&Deal{},
		&Proposal{},
		&Note{},
		&Activity{},
	}
}
