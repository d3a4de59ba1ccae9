package ledger

// registryABI is the subset of the RealEstateRental contract this service talks to.
const registryABI = `[
  {"type":"function","name":"listProperty","stateMutability":"nonpayable",
   "inputs":[
     {"name":"propertyAddress","type":"string"},
     {"name":"description","type":"string"},
     {"name":"rentPerMonth","type":"uint256"},
     {"name":"securityDeposit","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"updateProperty","stateMutability":"nonpayable",
   "inputs":[
     {"name":"propertyId","type":"uint256"},
     {"name":"propertyAddress","type":"string"},
     {"name":"description","type":"string"},
     {"name":"rentPerMonth","type":"uint256"},
     {"name":"securityDeposit","type":"uint256"},
     {"name":"isAvailable","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"delistProperty","stateMutability":"nonpayable",
   "inputs":[{"name":"propertyId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"getProperty","stateMutability":"view",
   "inputs":[{"name":"propertyId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"id","type":"uint256"},
     {"name":"owner","type":"address"},
     {"name":"propertyAddress","type":"string"},
     {"name":"description","type":"string"},
     {"name":"rentPerMonth","type":"uint256"},
     {"name":"securityDeposit","type":"uint256"},
     {"name":"isAvailable","type":"bool"},
     {"name":"isActive","type":"bool"}]}]},
  {"type":"function","name":"propertyCounter","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"PropertyListed","anonymous":false,
   "inputs":[
     {"name":"propertyId","type":"uint256","indexed":true},
     {"name":"owner","type":"address","indexed":true},
     {"name":"rentPerMonth","type":"uint256","indexed":false}]}
]`

const (
	methodList    = "listProperty"
	methodUpdate  = "updateProperty"
	methodDelist  = "delistProperty"
	methodGet     = "getProperty"
	methodCounter = "propertyCounter"

	eventPropertyListed = "PropertyListed"
)
