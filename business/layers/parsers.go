package layers

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Every layer pairs its construct methods with a free parse function.
var (
	_ driver.Parser[SingletonLayer]          = ParseSingletonLayer
	_ driver.Parser[AugmentedConditionLayer] = ParseAugmentedConditionLayer
	_ driver.Parser[CatLayer]                = ParseCatLayer
	_ driver.Parser[DidLayer]                = ParseDidLayer
	_ driver.Parser[NftStateLayer]           = ParseNftStateLayer
	_ driver.Parser[NftOwnershipLayer]       = ParseNftOwnershipLayer
	_ driver.Parser[RoyaltyTransferLayer]    = ParseRoyaltyTransferLayer
	_ driver.Parser[StandardLayer]           = ParseStandardLayer
	_ driver.Parser[OptionContractLayer]     = ParseOptionContractLayer

	_ driver.SolutionParser[SingletonSolution]              = ParseSingletonSolution
	_ driver.SolutionParser[clvm.NodePtr]                   = ParseAugmentedConditionSolution
	_ driver.SolutionParser[CatSolution]                    = ParseCatSolution
	_ driver.SolutionParser[clvm.NodePtr]                   = ParseDidSolution
	_ driver.SolutionParser[clvm.NodePtr]                   = ParseInnerSolution
	_ driver.SolutionParser[driver.Spend]                   = ParseStandardSolution
	_ driver.SolutionParser[[]NotarizedPayment]             = ParseSettlementSolution
	_ driver.SolutionParser[P2DelegatedBySingletonSolution] = ParseP2DelegatedBySingletonSolution
)
