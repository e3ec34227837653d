package distinct

import "math"

// Parameters of the UltraLogLog estimator. Register contributions decay like
// 2^(-ullTau*level); the constants ullEta0..ullEta3 weight the four
// combinations of the two flags below the highest level.
const (
	ullTau = 0.7550966382001302

	ullMinusTauInv = -1. / ullTau

	// ullVarianceFactor is the asymptotic relative variance of the default
	// estimator multiplied by the number of registers.
	ullVarianceFactor = 8 * 0.27771155104636824 * 0.27771155104636824

	// ullSaturatedRegister is the smallest register value at the saturated level.
	ullSaturatedRegister = ullSaturatedLevel << 2
)

var (
	ullKappa1 = math.Pow(2, ullTau)
	ullKappa2 = 1 / (math.Pow(8, ullTau) - math.Pow(4, ullTau))
	ullKappa3 = ullKappa2 + 1/ullKappa1

	ullEtaC = 1 / (math.Pow(2, 2*ullTau) * (ullKappa1 - 1))
	ullEta  = [4]float64{
		1 + 1/ullKappa1 + ullEtaC,
		1/ullKappa1 + ullEtaC,
		1 + ullEtaC,
		ullEtaC,
	}
)

// ullEstimationFactors[p-MinP] scales the power mean of the register
// contributions into an asymptotically unbiased estimate.
var ullEstimationFactors = [MaxP - MinP + 1]float64{
	198.73981665391312,
	1027.9377396749687,
	5233.925351968597,
	26433.204636982657,
	132944.2295453946,
	667235.7546841304,
	3345276.6696228283,
	1.6763152109693773e7,
	8.397783038422403e7,
	4.2064549352151716e8,
	2.106876773434261e9,
	1.0552313382074574e10,
	5.285049385375068e10,
	2.6469566663317322e11,
	1.3256925604422827e12,
	6.639538747664202e12,
	3.3253131662557215e13,
	1.6654322482669144e14,
	8.341060582250791e14,
	4.177491022408222e15,
	2.0922315506308388e16,
	1.04786167024773872e17,
	5.248052310107033e17,
	2.628405409742423e18,
}

// ullRegisterContributions[t] is ullEta[t&3] * 2^(-ullTau*(t/4+1)), the
// contribution of a register whose value exceeds 4(p+1) by t.
var ullRegisterContributions = [...]float64{
	1.2460201711017937,
	0.653513475722638,
	0.894955987032666,
	0.3024492916535102,
	0.7382752939552941,
	0.38721110988616636,
	0.5302674143865155,
	0.1792032303173878,
	0.4374330547015261,
	0.22942517513274754,
	0.3141869933654037,
	0.10617911379662519,
	0.25918201369081073,
	0.13593595235468833,
	0.1861578971700481,
	0.06291183583392572,
	0.1535670784336574,
	0.08054296191289477,
	0.11029980047095791,
	0.037275683950195294,
	0.09098952216175796,
	0.047722244199058475,
	0.06535337027802751,
	0.022086092315328043,
	0.053911901090191665,
	0.028275749206461226,
	0.03872230945532442,
	0.013086157571593987,
	0.03194316235655737,
	0.01675357072169013,
	0.022943227612823313,
	0.007753635977956072,
	0.018926537567843658,
	0.009926602824109598,
	0.01359401597420574,
	0.0045940812304716815,
	0.01121410022929249,
	0.005881578635654573,
	0.008054545481808098,
	0.002722023888170182,
	0.006644429468508727,
	0.003484874721024335,
	0.0047723721262072265,
	0.0016128173787228353,
	0.003936868947065984,
	0.002064811604764485,
	0.002827662437618638,
	9.55605095317139e-4,
	0.0023326212099668846,
	0.0012234147005195375,
	0.0016754089265611884,
	5.662024171138415e-4,
	0.001382093684688806,
	7.248814012831103e-4,
	9.92691006485508e-4,
	3.3547872307981245e-4,
	8.188997618193659e-4,
	4.294970836160677e-4,
	5.881760677853368e-4,
	1.9877338958203874e-4,
	4.8520359172237e-4,
	2.544798976883411e-4,
	3.484982582245961e-4,
	1.1777456419056722e-4,
	2.8748637671751845e-4,
	1.5078104321974457e-4,
	2.0648755132604703e-4,
	6.978221782827322e-5,
	1.7033760303542404e-4,
	8.933877764395259e-5,
	1.2234525667313e-4,
	4.13464312816586e-5,
	1.0092617027332548e-4,
	5.293382391103152e-5,
	7.249038372671083e-5,
	2.4498037364416874e-5,
	5.979943162592211e-5,
	3.1363645079307446e-5,
	4.29510377086804e-5,
	1.4515251162065735e-5,
	3.543156361822687e-5,
	1.8583169700985165e-5,
	2.5448777415875718e-5,
	8.600383498634015e-6,
	2.099343867155194e-5,
	1.1010652469200782e-5,
	1.5078571008120223e-5,
	5.095784805769066e-6,
	1.2438752971926225e-5,
	6.523885308494502e-6,
	8.934154279061265e-6,
	3.019286615629545e-6,
	7.370044418033647e-6,
	3.865445725168695e-6,
	5.293546227894125e-6,
	1.7889475350291736e-6,
	4.366800662926713e-6,
	2.2903024727871896e-6,
	3.136461582326346e-6,
	1.059963392186823e-6,
	2.587358630170215e-6,
	1.3570195495698475e-6,
	1.8583744873278625e-6,
	6.280354067274951e-7,
	1.5330273117228908e-6,
	8.040431688805394e-7,
	1.1010993262635626e-6,
	3.7211518342121145e-7,
	9.083289463949215e-7,
	4.764009609355932e-7,
	6.524087230886388e-7,
	2.2048073762931057e-7,
	5.381909823456857e-7,
	2.822707590394028e-7,
	3.865565365537844e-7,
	1.3063631324750157e-7,
	3.18881760432504e-7,
	1.6724731464060264e-7,
	2.2903733605069478e-7,
	7.740289025879344e-8,
	1.8893957809055026e-7,
	9.90951537087412e-8,
	1.3570615510184212e-7,
	4.586173072003307e-8,
	1.1194796504076395e-7,
	5.871454205205578e-8,
	8.040680550200368e-8,
	2.717338251329552e-8,
	6.632991882072436e-8,
	3.4788759281964074e-8,
	4.7641570613986767e-8,
	1.6100411075226482e-8,
	3.9300921005234995e-8,
	2.061257279849743e-8,
	2.8227949567165946e-8,
	9.539601360428386e-9,
	2.328605883016905e-8,
	1.2213087392099998e-8,
	1.6725249115370975e-8,
	5.652277677301926e-9,
	1.3797145765868082e-8,
	7.236336051070006e-9,
	9.909822082741611e-9,
	3.3490123679435366e-9,
	8.174901243399014e-9,
	4.287577560272542e-9,
	5.871635934040619e-9,
	1.9843122509141475e-9,
	4.843683720777293e-9,
	2.5404184114189026e-9,
	3.478983603747904e-9,
	1.1757182943895137e-9,
	2.86991503485957e-9,
	1.5052149178301797e-9,
	2.0613210783349387e-9,
	6.966209613055487e-10,
	1.7004438733235995e-9,
	8.918499167989679e-10,
	1.2213465402396332e-9,
	4.1275258371500173e-10,
	1.007524380060696e-9,
	5.284270469767305e-10,
	7.236560024701489e-10,
	2.445586693861836e-10,
	5.96964940943696e-10,
	3.1309656335314873e-10,
	4.2877102661487837e-10,
	1.4490264902433124e-10,
	3.5370572441576243e-10,
	1.8551181008694479e-10,
	2.5404970405390984e-10,
	8.585578972509221e-11,
	2.0957300991027393e-10,
	1.0991698954842127e-10,
	1.5052615061103474e-10,
	5.08701302491821e-11,
	1.2417341154259957e-10,
	6.512655224336035e-11,
	8.918775206668936e-11,
	3.014089276745014e-11,
	7.357357772706164e-11,
	3.858791825115141e-11,
	5.284434024532962e-11,
	1.7858680769419393e-11,
	4.3592837406282564e-11,
	2.2863599924550633e-11,
	3.131062540825184e-11,
	1.0581387926519918e-11,
	2.5829048033797352e-11,
	1.3546836035766623e-11,
	1.8551755190897945e-11,
	6.269543192867219e-12,
	1.530388389529476e-11,
	8.02659105239535e-12,
	1.0992039161642047e-11,
	3.7147463187426396e-12,
	9.067653673267387e-12,
	4.755808939614672e-12,
	6.5128567991428e-12,
	2.201012065490087e-12,
	5.372645512790326e-12,
	2.8178486386657384e-12,
	3.85891125953777e-12,
	1.3041143854131823e-12,
	3.1833284382270484e-12,
	1.6695941849744907e-12,
	2.286430758150141e-12,
	7.72696504897584e-13,
	1.8861434132403988e-12,
	9.892457331634913e-13,
	1.3547255327247989e-12,
	4.578278526478915e-13,
	1.1175526007902254e-12,
	5.861347202746278e-13,
	8.026839485405335e-13,
	2.712660680249361e-13,
	6.621573984065978e-13,
	3.4728874615690586e-13,
	4.755956137836443e-13,
	1.6072696153395228e-13,
	3.923326919507526e-13,
	2.057709073277989e-13,
	2.817935854597685e-13,
	9.523180083681482e-14,
	2.324597467969489e-13,
	1.2192064030596472e-13,
	1.6696458609981127e-13,
	5.6425479608827106e-14,
	1.377339563833356e-13,
	7.223879568619792e-14,
	9.892763515534778e-14,
	3.3432474458210114e-14,
	8.160829133818701e-14,
	4.280197011019917e-14,
	5.861528618756994e-14,
	1.9808964959582118e-14,
	4.8353459016328606e-14,
	2.536045386571153e-14,
	3.472994951770057e-14,
	1.1736944367083503e-14,
}
